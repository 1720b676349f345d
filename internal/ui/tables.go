package ui

import (
	"fmt"
	"io"
	"strings"

	"filehub/pkg/types"
	"filehub/pkg/utils"
)

// RenderFileList writes the server's file records as a formatted table.
func RenderFileList(w io.Writer, records []types.FileRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No files available on the server")
		return
	}

	fmt.Fprintln(w, "\nFiles available on the server:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "%-30s %-10s %-20s %-10s\n", "Filename", "Size", "Modified", "Versions")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, record := range records {
		fmt.Fprintf(w, "%-30s %-10s %-20s %-10d\n",
			record.Filename,
			utils.FormatFileSize(record.Size),
			record.Modified,
			len(record.Versions),
		)
	}
	fmt.Fprintln(w, strings.Repeat("-", 80))
}

// RenderVersions writes a file's archived revisions as a formatted table,
// newest first.
func RenderVersions(w io.Writer, filename string, versions []types.VersionRecord) {
	if len(versions) == 0 {
		fmt.Fprintf(w, "No version history available for %s\n", filename)
		return
	}

	fmt.Fprintf(w, "\nVersion history for %s:\n", filename)
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "%-40s %-10s %-20s\n", "Version", "Size", "Modified")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	// Records arrive oldest first; display newest at the top.
	for i := len(versions) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%-40s %-10s %-20s\n",
			versions[i].Filename,
			utils.FormatFileSize(versions[i].Size),
			versions[i].Modified,
		)
	}
	fmt.Fprintln(w, strings.Repeat("-", 80))
}
