package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/protolambda/muskoka-client/pkg/client"
)

var (
	uploadSpecVersion string
	uploadSpecConfig  string
	uploadPre         string
	uploadBlocks      []string
)

var uploadCmd = &cobra.Command{
	Use:     "upload",
	Short:   "Submit a new transition",
	Example: `  muskoka upload --spec-version v0.8.3 --spec-config minimal --pre pre.ssz --block b0.ssz --block b1.ssz`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []*os.File
		defer func() {
			for _, f := range files {
				f.Close()
			}
		}()
		open := func(path string) (client.File, error) {
			f, err := os.Open(path)
			if err != nil {
				return client.File{}, err
			}
			files = append(files, f)
			return client.File{Name: filepath.Base(path), Content: f}, nil
		}

		req := client.UploadRequest{SpecVersion: uploadSpecVersion, SpecConfig: uploadSpecConfig}
		pre, err := open(uploadPre)
		if err != nil {
			return err
		}
		req.PreState = pre
		// blocks are applied in flag order
		for _, path := range uploadBlocks {
			b, err := open(path)
			if err != nil {
				return err
			}
			req.Blocks = append(req.Blocks, b)
		}

		api, err := newAPIClient()
		if err != nil {
			return err
		}
		defer api.Close()

		key, err := api.Upload(cmd.Context(), req)
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Println("uploaded")
			return nil
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	f := uploadCmd.Flags()
	f.StringVar(&uploadSpecVersion, "spec-version", "", "Spec version the transition targets")
	f.StringVar(&uploadSpecConfig, "spec-config", "", "Spec config, e.g. minimal or mainnet")
	f.StringVar(&uploadPre, "pre", "", "Pre-state SSZ file")
	f.StringArrayVar(&uploadBlocks, "block", nil, "Block SSZ file, repeat in application order")
	_ = uploadCmd.MarkFlagRequired("spec-version")
	_ = uploadCmd.MarkFlagRequired("pre")
}
