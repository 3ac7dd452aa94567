// Package contentlayer is the composition root of the content layer.
//
// A content layer pulls content from loaders (glob patterns over markdown,
// data and HTML files, single data files, or functions) into named
// collections. Every entry is validated against the collection schema,
// rendered when it is markdown, and kept in a single data store that is
// persisted between runs. Subsequent syncs reuse what is still valid: a
// change to the configuration, the build settings or the engine version
// clears the store, and unchanged files are skipped.
//
// Usage:
//
//	cl, err := contentlayer.New("./site",
//		contentlayer.WithLogger(logger),
//		contentlayer.WithWatch(true),
//	)
//	if err != nil {
//		return err
//	}
//	defer cl.Shutdown(context.Background())
//
//	if err := cl.Sync(ctx, contentlayer.SyncOptions{}); err != nil {
//		return err
//	}
//	posts, err := contentlayer.NewTypedCollection[Post](cl, "posts").List()
package contentlayer
