// Command streamtail tails a realtime database stream and logs every delivered event.
//
//	streamtail --endpoint https://db.example.com/notams.json --kind notams --token "$TOKEN"
//
// Settings are read from the environment (STREAM_*, REDIS_*, LOG_LEVEL, APP_ENV,
// and a .env file when present). Flags override the environment.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
