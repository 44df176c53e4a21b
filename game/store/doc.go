// Package store persists player accounts, friend lists and lifetime
// statistics.
//
// Every implementation satisfies service.Store:
//
//   - MemoryStore keeps everything in maps; used in tests and for throwaway servers
//   - FileStore is a MemoryStore that rewrites passwords.json, stats.json and
//     friends.json under a data directory after every change
//   - SQLStore keeps users and friendships in sqlite3, mysql or postgres
//
// Passwords are hashed with bcrypt before they reach any backend.
//
// Usage:
//
//	st, err := store.Open(ctx, "sqlite3", "", "userdata")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	if err := st.Register(ctx, "alice", "secret"); errors.Is(err, service.ErrUserExists) {
//		...
//	}
//
// Friendships are one-directional: alice adding bob does not put alice on
// bob's list.
package store
