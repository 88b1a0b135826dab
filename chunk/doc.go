// Package chunk reads one self-play session's worth of training examples.
//
// A session is written by the self-play producer as three metadata records
// sharing a label, each pointing at a raw row-major data file in the same
// directory:
//
//	states<label>.json        -> states<label>.dat        (N x planes x 8 x 8)
//	rewards<label>.json       -> rewards<label>.dat       (N)
//	visit_counts<label>.json  -> visit_counts<label>.dat  (N x moves...)
//
// A metadata record is a JSON object:
//
//	{"shape": [N, ...], "strides": [...], "dtype": "float32", "data": "states_1.dat"}
//
// Open validates the three records against each other and against the data
// files on disk. Rows are read through read-only memory mappings and copied
// out, so a returned Row never aliases mapped memory.
package chunk
