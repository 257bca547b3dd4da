package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cloudverse/metering-center/core/model"
	"github.com/google/uuid"
)

const (
	priceCacheKey = "METERING::PRICE::LATEST"
	priceCacheTTL = 5 * time.Minute
)

// GetLatestPrice returns the newest price table row, ErrNoRow when none is
// configured. The row is cached in redis so every metering cycle does not
// hit the database.
func GetLatestPrice(ctx context.Context) (*model.Price, error) {
	if cached, err := RedisCache.Get(ctx, priceCacheKey).Result(); err == nil {
		var price model.Price
		if err := json.Unmarshal([]byte(cached), &price); err == nil {
			return &price, nil
		}
	}

	var price model.Price
	err := DB.GetContext(ctx, &price, `SELECT * FROM price ORDER BY created_at DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(&price); err == nil {
		if err := RedisCache.Set(ctx, priceCacheKey, data, priceCacheTTL).Err(); err != nil {
			log.Errorf("cache latest price: %v", err)
		}
	}

	return &price, nil
}

// AddPrice inserts a new price table row and drops the cached one.
func AddPrice(ctx context.Context, price *model.Price) error {
	if price.ID == "" {
		price.ID = uuid.NewString()
	}
	price.CreatedAt = time.Now()

	_, err := DB.NamedExecContext(ctx, `
		INSERT INTO price (id, vm_ram, vm_cpu, vm_disk, vm_pub_ip, vm_upstream, vm_downstream, vm_disk_snap,
			disk_size, disk_snap, obj_size, obj_upstream, obj_downstream, obj_get_request, obj_put_request,
			prepaid_discount, created_at)
		VALUES (:id, :vm_ram, :vm_cpu, :vm_disk, :vm_pub_ip, :vm_upstream, :vm_downstream, :vm_disk_snap,
			:disk_size, :disk_snap, :obj_size, :obj_upstream, :obj_downstream, :obj_get_request, :obj_put_request,
			:prepaid_discount, :created_at);`, price)
	if err != nil {
		return err
	}

	if err := RedisCache.Del(ctx, priceCacheKey).Err(); err != nil {
		log.Errorf("invalidate price cache: %v", err)
	}

	return nil
}
