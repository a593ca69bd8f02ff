// Package imagestore holds the images uploaded through the relay.
//
// Two stores exist, one per storage mode:
//
//   - MemoryStore keeps raw bytes in memory under dense integer ids that start
//     at 0 and are shared by every session. Id assignment is atomic, so
//     concurrent uploads never receive the same id.
//   - DiskStore flushes every upload to its own file before returning the
//     generated file name. Names look like img-20251125-103045-1a2b3c4d.png.
//
// Lookups of unknown ids or names fail with a relayerr NotFound error. Disk
// failures are relayerr Storage errors.
//
// Nothing is persisted across restarts for the memory store; the disk store
// leaves its files behind but keeps no index of them.
package imagestore
