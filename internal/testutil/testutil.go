// Package testutil provides shared test utilities and fixtures.
//
// The Burtin antibiotic table used throughout the tests lives here so every
// package asserts against the same numbers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chrislowzhengxi/data-viz/internal/fsutil"
)

// BurtinCSV is the 16-bacterium MIC table with its original headers.
const BurtinCSV = `Bacteria,Penicilin,Streptomycin,Neomycin,Gram Staining
Aerobacter aerogenes,870,1,1.6,negative
Brucella abortus,1,2,0.02,negative
Brucella anthracis,0.001,0.01,0.007,positive
Diplococcus pneumoniae,0.005,11,10,positive
Escherichia coli,100,0.4,0.1,negative
Klebsiella pneumoniae,850,1.2,1,negative
Mycobacterium tuberculosis,800,5,2,negative
Proteus vulgaris,3,0.1,0.1,negative
Pseudomonas aeruginosa,850,2,0.4,negative
Salmonella (Eberthella) typhosa,1,0.4,0.008,negative
Salmonella schottmuelleri,10,0.8,0.09,negative
Staphylococcus albus,0.007,0.1,0.001,positive
Staphylococcus aureus,0.03,0.03,0.001,positive
Streptococcus fecalis,1,1,0.1,positive
Streptococcus hemolyticus,0.001,14,10,positive
Streptococcus viridans,0.005,10,40,positive
`

// BurtinRows is the number of bacteria in BurtinCSV.
const BurtinRows = 16

// BurtinAntibiotics lists the normalised value columns of BurtinCSV.
var BurtinAntibiotics = []string{"penicilin", "streptomycin", "neomycin"}

// WriteFixture writes body to name inside a fresh temp dir and returns the path.
func WriteFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// MemoryFixture returns an in-memory filesystem holding BurtinCSV at path.
func MemoryFixture(path string) *fsutil.MemoryFileSystem {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Put(path, []byte(BurtinCSV))
	return mfs
}
