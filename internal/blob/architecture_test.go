package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// infraOwners lists, per infra subtree, the packages allowed to import it.
var infraOwners = map[string][]string{
	"elncore/internal/infra/blob":  {"elncore/internal/blob"},
	"elncore/internal/infra/index": {"elncore/internal/core"},
	"elncore/internal/infra/graph": {"elncore/cmd/eln-ingest"},
}

func TestInfraImportedOnlyByOwners(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "elncore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var violations []string
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, "elncore/internal/infra/") {
			continue
		}
		for imp := range pkg.Imports {
			for subtree, owners := range infraOwners {
				if imp != subtree && !strings.HasPrefix(imp, subtree+"/") {
					continue
				}
				if !contains(owners, pkg.PkgPath) {
					violations = append(violations, pkg.PkgPath+": "+imp)
				}
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of infra package: %s", v)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
