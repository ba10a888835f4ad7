// Package submit posts form snapshots to HTTP endpoints in the wire formats
// browsers and APIs expect.
//
// # Encodings
//
// Four encodings are supported:
//
//   - json: the snapshot as a JSON document
//   - form: url-encoded pairs keyed by scope path ("user/name=ada")
//   - multipart: multipart/form-data fields keyed by scope path
//   - merge-patch: an RFC 7386 merge patch against the last submission
//
// The merge patch encoding keeps a baseline per Submitter, starting from the
// empty document, and only advances it when the endpoint acknowledges with a
// 2xx status. Endpoints therefore see every change exactly once even across
// transient failures.
//
// # Usage
//
//	sub := submit.New("https://api.example.com/intake",
//	    submit.WithEncoding(submit.EncodingMergePatch),
//	)
//	receipt, err := sub.Submit(ctx, snapshot)
//
// The form codecs are exported for servers that accept snapshots in the same
// formats: DecodeForm turns url.Values back into a snapshot, with every leaf
// a string, since url encoding carries no type information.
package submit
