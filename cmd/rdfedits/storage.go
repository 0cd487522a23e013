package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coolbeans/rdfedits/pkg/storage"
)

type storagePaths struct {
	ConceptURI string `json:"concept_uri"`
	MetaFile   string `json:"meta_file"`
	Manifest   string `json:"manifest"`
	S3Key      string `json:"s3_key"`
}

func pathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path <concept-uri>...",
		Short: "Show the storage paths of archived objects",
		Long: `Derive the meta file path, archive manifest path and S3 key of each
concept URI.

Example:
  rdfedits path https://data.razu.nl/id/object/nl-wbdrazu-k50907905-689-285406`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			paths := make([]storagePaths, 0, len(args))
			for _, conceptURI := range args {
				metaFile, err := storage.ConceptURIToMetaFile(conceptURI)
				if err != nil {
					return err
				}
				paths = append(paths, storagePaths{
					ConceptURI: conceptURI,
					MetaFile:   metaFile,
					Manifest:   storage.ManifestPathFor(metaFile),
					S3Key:      storage.S3KeyFor(metaFile),
				})
			}

			if formatStr == "json" {
				jsonData, err := json.MarshalIndent(paths, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to serialize paths: %w", err)
				}
				fmt.Println(string(jsonData))
				return nil
			}

			for _, entry := range paths {
				fmt.Printf("%s\n  meta file: %s\n  manifest:  %s\n  s3 key:    %s\n",
					entry.ConceptURI, entry.MetaFile, entry.Manifest, entry.S3Key)
			}
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "text", "Output format: text or json")
	return cmd
}

func manifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Maintain archive manifests",
	}
	cmd.AddCommand(manifestMergeCmd())
	return cmd
}

func manifestMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <dir>",
		Short: "Merge *.manifest.json files into one manifest.json",
		Long: `Merge every *.manifest.json directly inside a directory into a single
manifest. Identical duplicate keys are kept once; differing ones are an error.

Example:
  rdfedits manifest merge ./manifests
  rdfedits manifest merge ./manifests --output archive/manifest.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(args[0], "manifest.json")
			}

			result, err := storage.MergeDirectory(args[0])
			if err != nil {
				return err
			}
			if len(result.Files) == 0 {
				fmt.Println("No *.manifest.json files found.")
			}

			if err := result.Manifest.Save(output); err != nil {
				return err
			}
			fmt.Printf("Merged %d files into %s with %d entries.\n", len(result.Files), output, len(result.Manifest))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path (default <dir>/manifest.json)")
	return cmd
}
