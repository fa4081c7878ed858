// Package database implements PostgreSQL-backed repositories.
//
// Connect builds the pgx pool, RunMigrations applies the idempotent schema.
// One repository type per aggregate (hosts, playlists, songs, votes). The
// votes table carries the UNIQUE (song_id, voter_id) constraint that makes
// vote casting idempotent across processes.
package database
