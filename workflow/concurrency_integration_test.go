package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"gorm.io/gorm"
)

// Parallel sales of the same item at one shop must never oversell, with or without the redis shop lock.
func TestConcurrentConsumeNeverOversells(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "shopledger_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserNameInContext(context.Background(), "test@local")
	db := config.GetDB()
	if err := db.Transaction(func(tx *gorm.DB) error {
		_, err := models.SeedChartOfAccounts(ctx, tx)
		return err
	}); err != nil {
		t.Fatalf("SeedChartOfAccounts: %v", err)
	}
	shop, err := models.CreateShop(ctx, &models.NewShop{Name: "Market Stall"})
	if err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	f := &ledgerFixture{ctx: ctx, db: db, shopA: shop}
	first := f.createBatch(t, "Eggs", 12, 10, "2024-03-01")
	second := f.createBatch(t, "Eggs", 8, 12, "2024-03-02")
	f.distribute(t, first, shop, 12)
	f.distribute(t, second, shop, 8)

	for _, locks := range []string{"false", "true"} {
		t.Run("shop_locks="+locks, func(t *testing.T) {
			t.Setenv("SHOP_LOCKS_ENABLED", locks)
			before := f.shopQuantity(t, shop, "Eggs")

			const workers = 12
			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				succeeded    int
				insufficient int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := workflow.Consume(ctx, &workflow.ConsumeInput{ShopId: shop.ID, ItemName: "Eggs", Quantity: dec(1)})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						succeeded++
					case errors.Is(err, utils.ErrInsufficientStock):
						insufficient++
					default:
						t.Errorf("Consume: %v", err)
					}
				}()
			}
			wg.Wait()

			after := f.shopQuantity(t, shop, "Eggs")
			requireDecimal(t, before.IntPart()-int64(succeeded), after, "remaining eggs")
			if after.IsNegative() {
				t.Fatalf("shop stock went negative: %s", after)
			}
			if succeeded+insufficient != workers {
				t.Fatalf("want %d outcomes, got %d ok and %d insufficient", workers, succeeded, insufficient)
			}
		})
	}
	f.requireLedgerIntact(t)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("shopledger-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun("run", "-d", "--name", name, "-p", "127.0.0.1:0:6379", "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("shopledger-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=shopledger_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
