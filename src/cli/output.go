package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"virt-backup/src/backup"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderStartResult prints one line per exported disk, image ID to
// NBD URL, then the checkpoint descriptor when one is attached.
func renderStartResult(w io.Writer, output string, res *backup.StartResult) error {
	if output == "json" {
		return printJSON(w, res)
	}
	images := make([]string, 0, len(res.Disks))
	for image := range res.Disks {
		images = append(images, image)
	}
	sort.Strings(images)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tURL")
	for _, image := range images {
		fmt.Fprintf(tw, "%s\t%s\n", image, res.Disks[image])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.Checkpoint != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, res.Checkpoint)
	}
	return nil
}

// renderChainResult prints what a bulk chain operation got done before
// it stopped, if it stopped.
func renderChainResult(w io.Writer, output string, verb string, res *backup.ChainResult) error {
	if output == "json" {
		return printJSON(w, res)
	}
	for _, id := range res.CheckpointIDs {
		fmt.Fprintf(w, "%s %s\n", verb, id)
	}
	if res.Failure != nil {
		fmt.Fprintf(w, "stopped: %s\n", res.Failure.Message)
	}
	return nil
}
