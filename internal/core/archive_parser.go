package core

import (
	"context"
	"regexp"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

// ArchiveParserName names the built-in parser of *.archive.yaml|json files.
const ArchiveParserName = "elncore.archive"

var archiveContent = regexp.MustCompile(`(?m)^\s*"?data"?\s*:`)

// archiveParser rebuilds the section of an archive file, typically one
// emitted while parsing another mainfile.
type archiveParser struct{}

func (archiveParser) Name() string { return ArchiveParserName }

func (archiveParser) Matcher() pluginapi.Matcher {
	return pluginapi.Matcher{
		Globs:   []string{"*.archive.yaml", "*.archive.yml", "*.archive.json"},
		Content: archiveContent,
	}
}

func (archiveParser) Parse(_ context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	sec, err := archive.Load(pc.Schema(), data, archive.FormatOf(pc.Mainfile()))
	if err != nil {
		return nil, errs.WrapFatal(err, "archive", "load")
	}
	return sec, nil
}
