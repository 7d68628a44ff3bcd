package osmio

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/osmgraph/osmgraph/internal/errs"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

func TestDecodeOverpassJSONParsesNodesAndWays(t *testing.T) {
	body := []byte(`{"elements":[
		{"type":"node","id":1,"lat":43.1,"lon":-79.2},
		{"type":"way","id":2,"nodes":[1,3],"tags":{"highway":"residential"}}
	]}`)

	out, err := decodeOverpassJSON(body)
	if err != nil {
		t.Fatalf("decodeOverpassJSON() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("decodeOverpassJSON() = %d elements, want 2", len(out))
	}
	if out[0].Type != "node" || out[0].ID != 1 {
		t.Errorf("element 0 = %+v, want a node with id 1", out[0])
	}
	if out[1].Type != "way" || out[1].Tags["highway"] != "residential" {
		t.Errorf("element 1 = %+v, want a way tagged highway=residential", out[1])
	}
}

func TestDecodeOverpassJSONEmptyElementsErrors(t *testing.T) {
	if _, err := decodeOverpassJSON([]byte(`{"elements":[]}`)); !errs.Is(err, errs.EmptyResponse) {
		t.Errorf("decodeOverpassJSON() on an empty element list should be an EmptyResponse error, got %v", err)
	}
}

func TestDecodeOverpassJSONMalformedErrors(t *testing.T) {
	if _, err := decodeOverpassJSON([]byte(`not json`)); err == nil {
		t.Error("decodeOverpassJSON() on malformed JSON should error")
	}
}

const sampleOSMXML = `<?xml version="1.0"?>
<osm version="0.6">
  <node id="1" lat="43.1" lon="-79.2">
    <tag k="name" v="Queen St"/>
  </node>
  <node id="2" lat="43.2" lon="-79.3"/>
  <way id="10">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="residential"/>
  </way>
</osm>`

func TestXMLFileFetcherParsesNodesAndWays(t *testing.T) {
	f := &XMLFileFetcher{Reader: strings.NewReader(sampleOSMXML)}

	batch, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("Next() = %d elements, want 3 (2 nodes + 1 way)", len(batch))
	}

	var node1, way10 *g.RawElement
	for i := range batch {
		switch {
		case batch[i].Type == "node" && batch[i].ID == 1:
			node1 = &batch[i]
		case batch[i].Type == "way" && batch[i].ID == 10:
			way10 = &batch[i]
		}
	}
	if node1 == nil {
		t.Fatal("node 1 missing from parsed batch")
	}
	if node1.Lat != 43.1 || node1.Lon != -79.2 {
		t.Errorf("node 1 coords = (%v, %v), want (43.1, -79.2)", node1.Lat, node1.Lon)
	}
	if node1.Tags["name"] != "Queen St" {
		t.Errorf("node 1 tags = %v, want name=Queen St", node1.Tags)
	}
	if way10 == nil {
		t.Fatal("way 10 missing from parsed batch")
	}
	if len(way10.Nodes) != 2 || way10.Nodes[0] != 1 || way10.Nodes[1] != 2 {
		t.Errorf("way 10 nodes = %v, want [1 2]", way10.Nodes)
	}
	if way10.Tags["highway"] != "residential" {
		t.Errorf("way 10 tags = %v, want highway=residential", way10.Tags)
	}
}

func TestXMLFileFetcherSecondCallReturnsEOF(t *testing.T) {
	f := &XMLFileFetcher{Reader: strings.NewReader(sampleOSMXML)}
	if _, err := f.Next(context.Background()); err != nil {
		t.Fatalf("first Next() error: %v", err)
	}
	if _, err := f.Next(context.Background()); err != io.EOF {
		t.Errorf("second Next() error = %v, want io.EOF", err)
	}
}

func TestXMLFileFetcherMissingRootErrors(t *testing.T) {
	f := &XMLFileFetcher{Reader: strings.NewReader(`<?xml version="1.0"?><notosm/>`)}
	if _, err := f.Next(context.Background()); err == nil {
		t.Error("Next() on a document without an <osm> root should error")
	}
}

func TestXMLFileFetcherEmptyDocumentErrors(t *testing.T) {
	f := &XMLFileFetcher{Reader: strings.NewReader(`<?xml version="1.0"?><osm version="0.6"></osm>`)}
	if _, err := f.Next(context.Background()); !errs.Is(err, errs.EmptyResponse) {
		t.Errorf("Next() on an osm document with no nodes/ways should be an EmptyResponse error, got %v", err)
	}
}

func TestTagsFromOSMEmptyReturnsNil(t *testing.T) {
	if got := tagsFromOSM(nil); got != nil {
		t.Errorf("tagsFromOSM(nil) = %v, want nil", got)
	}
}

func TestTagsFromOSMConvertsKeyValuePairs(t *testing.T) {
	tags := osm.Tags{{Key: "highway", Value: "residential"}, {Key: "name", Value: "Main St"}}
	got := tagsFromOSM(tags)
	if got["highway"] != "residential" || got["name"] != "Main St" {
		t.Errorf("tagsFromOSM() = %v", got)
	}
}

type fakeFetcher struct {
	batches [][]g.RawElement
	i       int
	failAt  int
}

func (f *fakeFetcher) Next(ctx context.Context) ([]g.RawElement, error) {
	if f.failAt > 0 && f.i == f.failAt {
		return nil, errs.New(errs.FetcherFailure, "synthetic failure")
	}
	if f.i >= len(f.batches) {
		return nil, io.EOF
	}
	b := f.batches[f.i]
	f.i++
	return b, nil
}

func TestDrainAllCollectsBatchesUntilEOF(t *testing.T) {
	f := &fakeFetcher{batches: [][]g.RawElement{
		{{Type: "node", ID: 1}},
		{{Type: "node", ID: 2}},
	}}

	batches, err := DrainAll(context.Background(), f)
	if err != nil {
		t.Fatalf("DrainAll() error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("DrainAll() = %d batches, want 2", len(batches))
	}
}

func TestDrainAllPropagatesFetcherError(t *testing.T) {
	f := &fakeFetcher{batches: [][]g.RawElement{{{Type: "node", ID: 1}}}, failAt: 1}

	if _, err := DrainAll(context.Background(), f); err == nil {
		t.Error("DrainAll() should propagate a mid-stream fetcher error")
	}
}
