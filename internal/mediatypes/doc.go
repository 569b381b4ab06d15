// Package mediatypes classifies media files by extension.
//
// It is a dependency-free foundation imported by the indexer and the
// database layer. Extensions are handled in their stored form: lowercase,
// without the leading dot ("jpg", "mov").
//
// # File Types
//
//	mediatypes.FileTypeImage // still images (jpg, heic, png, ...)
//	mediatypes.FileTypeVideo // video containers (mp4, mov, ...)
//	mediatypes.FileTypeOther // anything else
//
// # Allow-lists
//
// The scanner only considers files whose extension is in an AllowList:
//
//	allow := mediatypes.NewAllowList(cfg.Extensions)
//	if ext := mediatypes.Ext(name); allow.Allows(ext) {
//	    // index it
//	}
package mediatypes
