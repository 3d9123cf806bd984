package genome

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Region is a 0-based, half-open genomic interval.
type Region struct {
	Chrom      string
	Start, End int
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// Len returns the region length.
func (r Region) Len() int {
	return r.End - r.Start
}

// ParseRegion parses "chrom:start-end" or a BED-style "chrom<TAB>start<TAB>end" line.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)

	var chrom, startStr, endStr string
	if fields := strings.Fields(s); len(fields) >= 3 {
		chrom, startStr, endStr = fields[0], fields[1], fields[2]
	} else {
		colon := strings.LastIndexByte(s, ':')
		if colon <= 0 {
			return Region{}, fmt.Errorf("invalid region %q: expected chrom:start-end", s)
		}
		chrom = s[:colon]
		rest := s[colon+1:]
		dash := strings.IndexByte(rest, '-')
		if dash == -1 {
			return Region{}, fmt.Errorf("invalid region %q: expected chrom:start-end", s)
		}
		startStr, endStr = rest[:dash], rest[dash+1:]
	}

	start, err := strconv.Atoi(strings.ReplaceAll(startStr, ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: start: %w", s, err)
	}
	end, err := strconv.Atoi(strings.ReplaceAll(endStr, ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: end: %w", s, err)
	}
	if start < 0 || end <= start {
		return Region{}, fmt.Errorf("invalid region %q: need 0 <= start < end", s)
	}
	return Region{Chrom: chrom, Start: start, End: end}, nil
}

// ParseRegions parses a list of coordinate strings.
func ParseRegions(lines []string) ([]Region, error) {
	regions := make([]Region, 0, len(lines))
	for _, l := range lines {
		r, err := ParseRegion(l)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// ReadRegionFile reads one region per line. Blank lines, '#' comments and
// BED "track"/"browser" lines are skipped.
func ReadRegionFile(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open region file: %w", err)
	}
	defer f.Close()

	var regions []Region
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		r, err := ParseRegion(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		regions = append(regions, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read region file: %w", err)
	}
	return regions, nil
}

// LooksLikeRegionFile reports whether the first data line of the file at
// path parses as a region.
func LooksLikeRegionFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		_, err := ParseRegion(line)
		return err == nil
	}
	return false
}
