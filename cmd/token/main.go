// Command token mints a service token for a platform identity, for handing
// to API callers and for local testing.
//
// Usage:
//
//	token -id <actor-id> -s <secret> [-t <minutes>]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"keygate/internal/server/auth"
)

func main() {
	id := flag.String("id", "", "platform identity the token acts as")
	secret := flag.String("s", "", "HMAC secret key (must match the server)")
	minutes := flag.Int("t", 60, "token validity in minutes")
	flag.Parse()

	if *id == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "both -id and -s are required")
		flag.Usage()
		os.Exit(2)
	}

	tok, err := auth.GenerateToken(*id, []byte(*secret), time.Duration(*minutes)*time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tok)
}
