// Package nastydata downloads social media archives and indexes them into
// versioned Elasticsearch indices.
//
// Two archive sources are supported: the monthly Pushshift dumps of Reddit
// links and comments, and the batch results written by the NASTY Twitter
// crawler. Documents are cleaned according to the mapping of their kind and
// upserted, so a document found in several dumps is stored once and records
// every dump it came from.
//
// # Basic Usage
//
// Connect to the cluster and create a client:
//
//	es, err := elastic.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := nastydata.NewClient(nastydata.WithElasticsearch(es))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create a versioned index and point the "reddit" alias at it
//	name, err := client.NewIndex(ctx, "reddit", "pushshift-reddit", nastydata.NewIndexOptions{UpdateAlias: true})
//
//	// Index one dump
//	res, err := client.IndexDump(ctx, nastydata.IndexDumpOptions{
//	    Index:  "reddit",
//	    Kind:   "pushshift-reddit",
//	    Loader: "pushshift",
//	    File:   "RS_2011-01.zst",
//	})
//
// # Pushshift
//
// DownloadPushshift fetches dumps month by month and verifies them against
// the published checksums. SamplePushshift writes small samples of the
// downloaded dumps that still contain every field seen in them.
//
// # State
//
// With WithStateStore, completed downloads and indexed files are recorded.
// IndexDump skips files already indexed into the same index unless forced.
package nastydata
