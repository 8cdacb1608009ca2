// Package board is the gateway to the project board: it lists open items for
// the dedup snapshot, creates new items, posts parse-failure notices and
// announces new items on a backlog webhook.
package board
