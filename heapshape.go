// ABOUTME: Root heapshape package holding the version and package documentation
// ABOUTME: The analysis itself lives in the graph, join, shape and heapdump packages

// Package heapshape abstracts the shape of heaps described as symbolic memory
// graphs. It joins pairs of graphs into over-approximations, folds linked
// lists and binary trees into abstract segments and materialises concrete
// nodes out of those segments again.
package heapshape

// Version is the semantic version of the heapshape tool
const Version = "0.1.0-dev"
