package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const shopLockTTL = 30 * time.Second

// ObtainShopItemLock takes a best-effort redis lock for (shop, item) and returns its release func.
// Redis being absent or the lock being held elsewhere is logged and tolerated: the
// database row locks and conditional updates remain the source of truth.
func ObtainShopItemLock(ctx context.Context, logger *logrus.Logger, shopId int, itemName string) func() {
	noop := func() {}
	if !config.ShopLocksEnabled() {
		return noop
	}
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithFields(logrus.Fields{
			"field":   "ObtainShopItemLock",
			"shop_id": shopId,
			"item":    itemName,
		}).Warn("redis lock not ready; proceeding without redis lock")
		return noop
	}

	key := fmt.Sprintf("lock:shop:%d:item:%s", shopId, CodePart(itemName))
	lock, err := locker.Obtain(ctx, key, shopLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if err != nil {
		msg := "error obtaining redis lock; proceeding without redis lock: " + err.Error()
		if errors.Is(err, redislock.ErrNotObtained) {
			msg = "could not obtain redis lock; proceeding without redis lock"
		}
		logger.WithFields(logrus.Fields{
			"field":   "ObtainShopItemLock",
			"shop_id": shopId,
			"item":    itemName,
		}).Warn(msg)
		return noop
	}
	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			logger.WithFields(logrus.Fields{
				"field":   "ObtainShopItemLock",
				"shop_id": shopId,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}
