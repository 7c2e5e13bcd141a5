package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OctoberEnd/chatbox/internal/chat"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file and print its file id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetBool("image")

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		kind := chat.AttachmentFile
		if image {
			kind = chat.AttachmentImage
		}
		att := chat.NewAttachment(filepath.Base(args[0]), args[0], kind)
		if err := a.uploader.Upload(context.Background(), att); err != nil {
			return err
		}

		printSuccess("Uploaded %s", att.Name)
		fmt.Println(att.FileID)
		return nil
	},
}

func init() {
	uploadCmd.Flags().Bool("image", false, "upload as an image attachment")
}
