package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Lists the messages kept by the embedded store, oldest conversation first.
//
// -between 7,42 prints one conversation through the store.
// -save-user 7 -username alice seeds the profile attached to stored messages.
// Both need write access: stop the relay first.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	between := flag.String("between", "", "two user ids, prints their conversation")
	limit := flag.Int("limit", 50, "maximum messages printed with -between")
	saveUser := flag.String("save-user", "", "user id whose profile is saved")
	username := flag.String("username", "", "username saved with -save-user")
	email := flag.String("email", "", "email saved with -save-user")
	flag.Parse()

	if *between != "" || *saveUser != "" {
		if err := withStore(*dbPath, *limit, func(store *repositories.BadgerStore) error {
			if *saveUser != "" {
				return seedUser(store, *saveUser, *username, *email)
			}
			return printConversation(store, *between)
		}); err != nil {
			log.Fatal(err)
		}
		return
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := newTable()
	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				var message domain.Message
				if err := json.Unmarshal(v, &message); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}
				appendMessage(table, rawKey, message)
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("%d message(s)\n", count)
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "ID", "At", "Sender", "Receiver", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func appendMessage(table *tablewriter.Table, key string, message domain.Message) {
	table.Append([]string{
		key,
		strconv.FormatInt(message.ID, 10),
		message.CreatedAt.Format("2006-01-02 15:04:05"),
		displayName(message.Sender),
		displayName(message.Receiver),
		message.Content,
	})
}

func withStore(path string, limit int, fn func(store *repositories.BadgerStore) error) error {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	store, err := repositories.NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelWarn), limit)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printConversation(store *repositories.BadgerStore, between string) error {
	ids := strings.Split(between, ",")
	if len(ids) != 2 {
		return fmt.Errorf("-between expects two ids, got %q", between)
	}
	a, okA := domain.ParseUserID(strings.TrimSpace(ids[0]))
	b, okB := domain.ParseUserID(strings.TrimSpace(ids[1]))
	if !okA || !okB {
		return fmt.Errorf("-between expects positive ids, got %q", between)
	}

	messages, err := store.Conversation(a, b)
	if err != nil {
		return err
	}
	table := newTable()
	for _, message := range messages {
		appendMessage(table, fmt.Sprintf("%d:%d", a, b), message)
	}
	table.Render()
	fmt.Printf("%d message(s)\n", len(messages))
	return nil
}

func seedUser(store *repositories.BadgerStore, id, username, email string) error {
	userID, ok := domain.ParseUserID(id)
	if !ok {
		return fmt.Errorf("-save-user expects a positive id, got %q", id)
	}
	profile := domain.Profile{ID: userID, Username: username, Email: email, CreatedAt: time.Now().UTC()}
	if err := store.SaveUser(profile); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", displayName(profile))
	return nil
}

func displayName(p domain.Profile) string {
	if strings.TrimSpace(p.Username) == "" {
		return p.ID.String()
	}
	return fmt.Sprintf("%s (%d)", p.Username, p.ID)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
