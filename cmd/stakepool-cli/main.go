// stakepool-cli is a small command line client for the stake pool relay.
//
// Usage:
//
//	stakepool-cli [-url http://localhost:8899] stake <user-pubkey> <amount>
//	stakepool-cli [-url ...] unstake <user-pubkey> <amount>
//	stakepool-cli [-url ...] balance <user-pubkey>
//	stakepool-cli [-url ...] position <user-pubkey>
//	stakepool-cli [-url ...] pool
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

var (
	relayURL = flag.String("url", "http://localhost:8899", "Relay server URL")
	timeout  = flag.Duration("timeout", 30*time.Second, "Request timeout")
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: stakepool-cli [flags] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  stake <user-pubkey> <amount>    Stake tokens into the pool")
	fmt.Fprintln(os.Stderr, "  unstake <user-pubkey> <amount>  Unstake tokens from the pool")
	fmt.Fprintln(os.Stderr, "  balance <user-pubkey>           Show the user's token balance")
	fmt.Fprintln(os.Stderr, "  position <user-pubkey>          Show the user's staking position")
	fmt.Fprintln(os.Stderr, "  pool                            Show the pool state")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	os.Exit(2)
}

// request performs an HTTP request against the relay and prints the JSON
// response. Non-2xx responses exit with status 1.
func request(client *http.Client, method, path string, body interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, *relayURL+path, reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(1)
	}

	// Re-indent for readability; fall back to raw output.
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

// parseAmount parses a u64 token amount argument.
func parseAmount(arg string) uint64 {
	amount, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid amount %q: %v\n", arg, err)
		os.Exit(1)
	}
	return amount
}

type transferRequest struct {
	UserPublicKey string `json:"user_public_key"`
	Amount        uint64 `json:"amount"`
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	client := &http.Client{Timeout: *timeout}

	switch args[0] {
	case "stake":
		if len(args) != 3 {
			usage()
		}
		request(client, http.MethodPost, "/stake", transferRequest{
			UserPublicKey: args[1],
			Amount:        parseAmount(args[2]),
		})
	case "unstake":
		if len(args) != 3 {
			usage()
		}
		request(client, http.MethodPost, "/unstake", transferRequest{
			UserPublicKey: args[1],
			Amount:        parseAmount(args[2]),
		})
	case "balance":
		if len(args) != 2 {
			usage()
		}
		request(client, http.MethodGet, "/balance/"+args[1], nil)
	case "position":
		if len(args) != 2 {
			usage()
		}
		request(client, http.MethodGet, "/position/"+args[1], nil)
	case "pool":
		if len(args) != 1 {
			usage()
		}
		request(client, http.MethodGet, "/pool", nil)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		usage()
	}
}
