// Package testkit provides fixtures shared by the pipeline tests: synthetic student
// datasets, zip archives, settings trees rooted in a temp dir and a mock download server.
package testkit

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// StudentHeader is the header line of the raw dataset.
const StudentHeader = "gender,race_ethnicity,parental_level_of_education,lunch,test_preparation_course,math_score,reading_score,writing_score"

var (
	genders   = []string{"female", "male"}
	groups    = []string{"group A", "group B", "group C", "group D", "group E"}
	education = []string{"some high school", "high school", "some college", "associate's degree", "bachelor's degree", "master's degree"}
	lunches   = []string{"standard", "free/reduced"}
	prep      = []string{"none", "completed"}
)

// StudentCSV returns n deterministic student records with a header line.
// Scores correlate with lunch and preparation so models have signal to learn.
func StudentCSV(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString(StudentHeader)
	b.WriteByte('\n')
	for i := 0; i < n; i++ {
		lunch := rng.Intn(len(lunches))
		course := rng.Intn(len(prep))
		base := 55 + 10*(1-lunch) + 7*course + rng.Intn(20)
		reading := clamp(base + rng.Intn(11) - 5)
		writing := clamp(reading + rng.Intn(9) - 4)
		math := clamp((reading+writing)/2 + rng.Intn(13) - 6)
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%d,%d,%d\n",
			genders[rng.Intn(len(genders))],
			groups[rng.Intn(len(groups))],
			education[rng.Intn(len(education))],
			lunches[lunch],
			prep[course],
			math, reading, writing)
	}
	return b.String()
}

func clamp(v int) int {
	return max(0, min(100, v))
}

// ZipArchive packs files into an in-memory zip, members in sorted order.
func ZipArchive(files map[string]string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
