//go:build ignore
// +build ignore

// Manual concurrency stress test for the borrow API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_id> <member1_id> [member2_id ...]
//
// Or via environment variables:
//
//	BOOK_ID=<id> MEMBER_IDS=<id1>,<id2>,... go run ./scripts/concurrency_test.go
//
// Fires one borrow request per member against the same book simultaneously
// and tallies how many were granted vs rejected. With N members and K
// available copies, exactly K requests should succeed — the guarded
// decrement on available_copies serializes the race for the last copy.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type borrowResult struct {
	MemberID   string
	StatusCode int
	ErrMsg     string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	var memberIDs []string
	if v := os.Getenv("MEMBER_IDS"); v != "" {
		memberIDs = strings.Split(v, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		memberIDs = args[1:]
	}

	if bookID == "" || len(memberIDs) == 0 {
		log.Fatal("Usage: BOOK_ID=<id> MEMBER_IDS=<id1,id2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <book_id> <member1_id> [member2_id ...]")
	}

	fmt.Printf("=== Borrow Concurrency Test ===\n")
	fmt.Printf("Server  : %s\n", serverAddr)
	fmt.Printf("Book    : %s\n", bookID)
	fmt.Printf("Members : %d\n\n", len(memberIDs))

	results := make([]borrowResult, len(memberIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, mid := range memberIDs {
		wg.Add(1)
		go func(idx int, memberID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(serverAddr, bookID, strings.TrimSpace(memberID))
		}(i, mid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()

	var granted, rejected, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] member=%-6s err=%v\n", r.MemberID, r.Err)
		case r.StatusCode == http.StatusCreated:
			granted++
			fmt.Printf("  [BRRW] member=%-6s status=%d\n", r.MemberID, r.StatusCode)
		case r.StatusCode == http.StatusBadRequest || r.StatusCode == http.StatusConflict:
			rejected++
			fmt.Printf("  [RJCT] member=%-6s status=%d reason=%s\n", r.MemberID, r.StatusCode, r.ErrMsg)
		default:
			failures++
			fmt.Printf("  [FAIL] member=%-6s status=%d unexpected response\n", r.MemberID, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Granted  : %d\n", granted)
	fmt.Printf("Rejected : %d\n", rejected)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Total    : %d\n\n", len(memberIDs))

	fmt.Println("--- Invariant Check ---")
	fmt.Println("Granted must not exceed the book's available_copies before the test;")
	fmt.Println("the partial unique index uniq_active_borrow additionally guarantees no")
	fmt.Println("member holds two active records for the same book.")

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptBorrow sends POST /api/borrows for the given (book, member) pair.
func attemptBorrow(serverAddr, bookID, memberID string) borrowResult {
	url := fmt.Sprintf("%s/api/borrows", serverAddr)
	body := fmt.Sprintf(`{"bookId":%s,"memberId":%s}`, bookID, memberID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		return borrowResult{MemberID: memberID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var parsed map[string]interface{}
	_ = json.Unmarshal(raw, &parsed)
	errMsg, _ := parsed["error"].(string)

	return borrowResult{
		MemberID:   memberID,
		StatusCode: resp.StatusCode,
		ErrMsg:     errMsg,
	}
}
