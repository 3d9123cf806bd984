package main

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/inodb/vibe-motif/internal/genome"
)

// UCSC genome downloads
const ucscBaseURL = "https://hgdownload.soe.ucsc.edu/goldenPath"

// genomeURL returns the whole-genome FASTA URL of a UCSC assembly.
func genomeURL(name string) string {
	return fmt.Sprintf("%s/%s/bigZips/%s.fa.gz", ucscBaseURL, name, name)
}

func newGenomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genome",
		Short: "Manage genome indexes",
		Long: `Genomes live under genome_dir, one directory of FASTA files per genome.
They are used to scan genomic regions and as background for --fdr.`,
	}
	cmd.AddCommand(newGenomeDownloadCmd())
	cmd.AddCommand(newGenomeListCmd())
	return cmd
}

func newGenomeDownloadCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a genome FASTA from UCSC",
		Long: `Download a gzipped genome FASTA and store it uncompressed, so that
regions are read from disk instead of holding the genome in memory.`,
		Example: `  # Download hg38 (~1GB)
  vibe-motif genome download hg38

  # Download from a mirror
  vibe-motif genome download mm10 --url https://mirror.example.org/mm10.fa.gz`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if url == "" {
				url = genomeURL(name)
			}
			out := cmd.OutOrStdout()
			dest := filepath.Join(loadSettings().GenomeDir, name, name+".fa")

			if info, err := os.Stat(dest); err == nil {
				fmt.Fprintf(out, "Genome %s already exists (%s), skipping\n", name, humanize.IBytes(uint64(info.Size())))
				return nil
			}

			fmt.Fprintf(out, "Downloading genome %s from %s\n", name, url)
			n, err := fetchGenome(cmd.Context(), out, url, dest)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", name, err)
			}
			fmt.Fprintf(out, "Download complete! %s written to %s\n", humanize.IBytes(uint64(n)), dest)
			fmt.Fprintf(out, "To scan regions, run:\n")
			fmt.Fprintf(out, "  vibe-motif scan -g %s -p motifs.pwm regions.bed\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Download from this URL instead of UCSC")
	return cmd
}

func newGenomeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed genomes",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := loadSettings().GenomeDir
			entries, err := os.ReadDir(root)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("reading genome directory: %w", err)
			}
			var names []string
			for _, e := range entries {
				if genome.Exists(root, e.Name()) {
					names = append(names, e.Name())
				}
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// gzipMagic starts every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// fetchGenome streams a gzipped FASTA from url, decompressing it into a
// temporary file next to dest, and renames it into place once the whole body
// has arrived. A body that is not gzip data (an HTML error page, say) is
// rejected. It returns the uncompressed size.
func fetchGenome(ctx context.Context, w io.Writer, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create genome directory: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	p := &progress{w: w, total: resp.ContentLength, every: time.Second}
	body := bufio.NewReader(io.TeeReader(resp.Body, p))
	if head, err := body.Peek(len(gzipMagic)); err != nil || !bytes.Equal(head, gzipMagic) {
		return 0, fmt.Errorf("%s is not a gzipped FASTA file", url)
	}
	zr, err := gzip.NewReader(body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", url, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, zr)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	p.done()

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("rename file: %w", err)
	}
	return n, nil
}

// progress reports received bytes at most once per interval.
type progress struct {
	w     io.Writer
	total int64
	every time.Duration

	received int64
	last     time.Time
}

func (p *progress) Write(b []byte) (int, error) {
	p.received += int64(len(b))
	if now := time.Now(); now.Sub(p.last) >= p.every {
		p.last = now
		p.report()
	}
	return len(b), nil
}

func (p *progress) report() {
	got := humanize.IBytes(uint64(p.received))
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r  %s", got)
		return
	}
	fmt.Fprintf(p.w, "\r  %s / %s (%.1f%%)", got, humanize.IBytes(uint64(p.total)),
		float64(p.received)/float64(p.total)*100)
}

func (p *progress) done() {
	p.report()
	fmt.Fprintln(p.w)
}
