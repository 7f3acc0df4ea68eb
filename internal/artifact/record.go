package artifact

// Record describes a materialized copy of some Key: where it landed
// (DestinationURI, always a file:// URI under the run's workspace), where
// it came from (OriginURI, Source), and whatever content hashes were
// computed or observed along the way. Records are created once by a
// successful strategy and never mutated afterward.
type Record struct {
	Key             Key
	DestinationURI  string
	OriginURI       string
	Source          Source
	ContentSHA256   string
	Size            int64
	CreatedAtEpochS int64
	ContentHashes   map[string]string
}
