// Package crowdstrike renders Falcon event search queries. The search
// language is SPL, so the splunk dialect is reused with CrowdStrike mappings.
package crowdstrike

import (
	"io/fs"

	"github.com/PhucNguyen204/query_translator/pkg/mapping"
	"github.com/PhucNguyen204/query_translator/pkg/platforms/splunk"
	"github.com/PhucNguyen204/query_translator/pkg/render"
)

const Name = "crowdstrike"

func SignatureFactory() mapping.SignatureFactory {
	return mapping.SetFactory(mapping.KeyValueFormatter("=", " ", true, "event_simpleName"))
}

func LoadMappings(fsys fs.FS) (*mapping.Repository, error) {
	return mapping.LoadRepository(fsys, Name, Name, SignatureFactory())
}

func NewRender(repo *mapping.Repository, opts render.Options) *render.QueryRender {
	return render.New(render.Config{
		Name:          Name,
		Mappings:      repo,
		FieldValue:    render.FieldValue{Dialect: splunk.Dialect{Platform: Name}},
		And:           "AND",
		Or:            "OR",
		Not:           "NOT",
		QueryPattern:  "{prefix} {query} {functions}",
		StrictMapping: opts.ForceStrict,
		CommentPrefix: "`",
		CommentSuffix: "`",
		Functions:     splunk.Functions,
		Logger:        opts.Logger,
	})
}
