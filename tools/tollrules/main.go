package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"toll-calculator/internal/auth"
	toll "toll-calculator/internal/toll/domain"
	rules "toll-calculator/internal/toll/infrastructure/rules"
)

type config struct {
	command  string
	file     string
	dsn      string
	setName  string
	redis    string
	redisKey string
	format   string
	secret   string
	subject  string
	role     string
	ttl      time.Duration
}

func main() {
	cfg := parseConfig()
	ctx := context.Background()

	switch cfg.command {
	case "publish":
		if err := publish(ctx, cfg); err != nil {
			log.Fatalf("publish: %v", err)
		}
	case "print":
		if err := printRules(cfg); err != nil {
			log.Fatalf("print: %v", err)
		}
	case "token":
		token, err := mintToken(cfg)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(token)
	default:
		log.Fatalf("unknown command %q (publish|print|token)", cfg.command)
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.file, "file", envOrDefault("RULES_FILE", ""), "rules file (json or yaml); default rules when empty")
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.setName, "set-name", envOrDefault("RULES_SET_NAME", "default"), "rule set name in Postgres")
	flag.StringVar(&cfg.redis, "redis-addr", envOrDefault("REDIS_ADDR", ""), "Redis address")
	flag.StringVar(&cfg.redisKey, "redis-key", envOrDefault("RULES_REDIS_KEY", "toll:rules"), "Redis key")
	flag.StringVar(&cfg.format, "format", envOrDefault("RULES_FORMAT", string(rules.FormatYAML)), "print format (json|yaml)")
	flag.StringVar(&cfg.secret, "secret", envOrDefault("AUTH_JWT_SECRET", ""), "JWT secret for token")
	flag.StringVar(&cfg.subject, "subject", envOrDefault("TOKEN_SUBJECT", "tollrules"), "token subject")
	flag.StringVar(&cfg.role, "role", envOrDefault("TOKEN_ROLE", string(auth.RoleViewer)), "token role (viewer|operator|admin)")
	flag.DurationVar(&cfg.ttl, "ttl", envOrDuration("TOKEN_TTL", 24*time.Hour), "token lifetime")
	flag.Parse()
	cfg.command = strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	return cfg
}

func loadRules(ctx context.Context, path string) (*toll.RuleSet, error) {
	if path == "" {
		return toll.DefaultRuleSet(), nil
	}
	provider, err := rules.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	return provider.Fetch(ctx)
}

func publish(ctx context.Context, cfg config) error {
	if cfg.dsn == "" && cfg.redis == "" {
		return fmt.Errorf("PG_DSN or REDIS_ADDR is required")
	}
	ruleSet, err := loadRules(ctx, cfg.file)
	if err != nil {
		return err
	}

	if cfg.dsn != "" {
		db, err := sql.Open("pgx", cfg.dsn)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		id, err := rules.NewPostgresProvider(db, rules.WithRuleSetName(cfg.setName)).Save(ctx, ruleSet)
		if err != nil {
			return fmt.Errorf("save postgres: %w", err)
		}
		log.Printf("saved rule set %q id=%d", cfg.setName, id)
	}

	if cfg.redis != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.redis})
		defer client.Close()
		provider, err := rules.NewRedisProvider(client, cfg.redisKey)
		if err != nil {
			return err
		}
		if err := provider.Publish(ctx, ruleSet); err != nil {
			return fmt.Errorf("publish redis: %w", err)
		}
		log.Printf("published rule set to redis key %s", cfg.redisKey)
	}
	return nil
}

func printRules(cfg config) error {
	ruleSet, err := loadRules(context.Background(), cfg.file)
	if err != nil {
		return err
	}
	data, err := rules.Encode(rules.FromDomain(ruleSet), rules.Format(strings.ToLower(cfg.format)))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func mintToken(cfg config) (string, error) {
	if cfg.secret == "" {
		return "", fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	role, ok := auth.NormalizeRole(cfg.role)
	if !ok {
		return "", fmt.Errorf("unknown role %q", cfg.role)
	}
	return auth.IssueJWT(cfg.subject, role, []byte(cfg.secret), cfg.ttl)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
