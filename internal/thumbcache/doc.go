// Package thumbcache stores timeline thumbnails in a bbolt database, one
// nested bucket per document UUID.
//
// Opening or creating a document clears its bucket; saving retains only the
// thumbnails the timeline still references (the thumbkeys property).
package thumbcache
