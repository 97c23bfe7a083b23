package main

import (
	"bufio"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

type Config struct {
	ServerURL  string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8000"`
	Token      string `envconfig:"CHAT_TOKEN"`
	ReceiverID string `envconfig:"CHAT_RECEIVER_ID"`
	HealthAddr string `envconfig:"CHAT_HEALTH_ADDR" default:"localhost:8001"`
	// CHAT_COLOURS enables colorized output
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	health := flag.Bool("health", false, "print the gRPC health status and exit")
	stats := flag.Bool("stats", false, "print the server counters and exit")
	receiver := flag.String("to", "", "receiver id, overrides CHAT_RECEIVER_ID")
	flag.Parse()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fail(cfg, "config error: %v", err)
	}
	if *receiver != "" {
		cfg.ReceiverID = *receiver
	}

	var err error
	switch {
	case *health:
		err = printHealth(cfg)
	case *stats:
		err = printStats(cfg)
	default:
		err = chat(cfg)
	}
	if err != nil {
		fail(cfg, "%v", err)
	}
}

func fail(cfg Config, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if cfg.Colours {
		msg = color.FgRed.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func printHealth(cfg Config) error {
	conn, err := grpc.NewClient(cfg.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}
	out := marshaler.Format(resp)
	if cfg.Colours {
		c := color.FgGreen
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			c = color.FgRed
		}
		out = c.Render(out)
	}
	fmt.Println(out)
	return nil
}

func printStats(cfg Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
	u.Path = "/stats"

	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return err
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprint(stats[k])})
	}
	table.Render()
	return nil
}

func chat(cfg Config) error {
	receiverID, ok := domain.ParseUserID(cfg.ReceiverID)
	if !ok {
		return fmt.Errorf("a positive receiver id is required (CHAT_RECEIVER_ID or -to)")
	}
	endpoint := fmt.Sprintf("%s/chat/ws/%d?token=%s",
		strings.TrimRight(cfg.ServerURL, "/"), receiverID, url.QueryEscape(cfg.Token))

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() { done <- readLoop(cfg, conn) }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				<-done
				return nil
			}
			frame, _ := json.Marshal(map[string]any{"receiver_id": receiverID, "content": line})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

func readLoop(cfg Config, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("connection closed by server: %d %s", closeErr.Code, closeErr.Text)
			}
			return err
		}
		fmt.Println(render(cfg, data))
	}
}

func render(cfg Config, data []byte) string {
	var rejected domain.ErrorFrame
	if json.Unmarshal(data, &rejected) == nil && rejected.Error != "" {
		if cfg.Colours {
			return color.FgRed.Render("✗ " + rejected.Error)
		}
		return "error: " + rejected.Error
	}

	var message domain.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return string(data)
	}
	who := message.Sender.Username
	if who == "" {
		who = message.SenderID.String()
	}
	line := fmt.Sprintf("[%s] #%d %s → %d: %s",
		message.CreatedAt.Local().Format("15:04:05"), message.ID, who, message.ReceiverID, message.Content)
	if cfg.Colours {
		return color.FgGreen.Render(line)
	}
	return line
}
