// Command geos-smoke checks that a deployment's moving parts answer: the
// redis document cache, the HTTP endpoints and the print event topic.
package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/geos/internal/core/config"
	"github.com/mohammed-shakir/geos/internal/printevents"
)

func checkRedis(ctx context.Context, addr string) error {
	fmt.Println("redis check")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if err := client.Set(ctx, "geos:smoke", "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	val, err := client.Get(ctx, "geos:smoke").Result()
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	fmt.Println("redis GET geos:smoke:", val)
	return nil
}

// checkServer fetches the master document and the map listing and returns
// the first map id, if any.
func checkServer(ctx context.Context, client *http.Client, base string) (string, error) {
	fmt.Println("server check")
	base = strings.TrimRight(base, "/")

	body, err := get(ctx, client, base+"/kml-master.kml")
	if err != nil {
		return "", err
	}
	var doc struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &doc); err != nil || doc.XMLName.Local != "kml" {
		return "", fmt.Errorf("master document is not kml: %v", err)
	}

	body, err = get(ctx, client, base+"/maps.json")
	if err != nil {
		return "", err
	}
	var maps []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &maps); err != nil {
		return "", fmt.Errorf("maps.json: %w", err)
	}
	fmt.Printf("server lists %d maps\n", len(maps))
	if len(maps) == 0 {
		return "", nil
	}
	return maps[0].ID, nil
}

func get(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()
	// only read a bounded part of the body
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d: %.200s", u, resp.StatusCode, body)
	}
	return body, nil
}

// checkPrintEvents requests a tiny print and waits for its event on topic.
func checkPrintEvents(ctx context.Context, client *http.Client, base, mapID string, brokers []string, topic string) error {
	fmt.Println("print events check")
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	printURL := fmt.Sprintf("%s/print/%s/2/0/0/20/20/map.png?dpi=25.4", strings.TrimRight(base, "/"), mapID)
	if _, err := get(ctx, client, printURL); err != nil {
		return err
	}

	select {
	case m := <-pc.Messages():
		var ev printevents.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fmt.Printf("consumed print event job=%s map=%s tiles=%d\n", ev.JobID, ev.MapID, ev.Tiles)
	case <-time.After(5 * time.Second):
		fmt.Println("no print event consumed (timeout)")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.FromEnv()
	base := os.Getenv("GEOS_URL")
	if base == "" {
		base = "http://localhost" + cfg.Addr
	}
	client := &http.Client{Timeout: 20 * time.Second}

	if cfg.DocCache.Backend == "redis" {
		if err := checkRedis(ctx, cfg.RedisAddr); err != nil {
			fmt.Println("redis error:", err)
			os.Exit(1)
		}
	}
	mapID, err := checkServer(ctx, client, base)
	if err != nil {
		fmt.Println("server error:", err)
		os.Exit(1)
	}
	if cfg.PrintEvents.Enabled && mapID != "" {
		if err := checkPrintEvents(ctx, client, base, mapID, cfg.PrintEvents.Brokers, cfg.PrintEvents.Topic); err != nil {
			fmt.Println("print events error:", err)
			os.Exit(1)
		}
	}
	fmt.Println("all checks completed")
}
