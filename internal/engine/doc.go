// Package engine is the boundary to the external storage engine that handles
// allocations, files and blobbers. StorageEngine is the only view the rest of
// the module has of it; GRPCEngine is the only code that knows how the engine
// is called.
package engine
