package api

import (
	"net/http"
	"strconv"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/core/pricing"
	"github.com/gin-gonic/gin"
)

// DescribePriceHandler quotes a resource price from query params.
// Sizes are GiB, period is whole months and only meaningful for prepaid.
func DescribePriceHandler(c *gin.Context) {
	resourceType := model.ResourceType(c.Query("resource_type"))
	switch resourceType {
	case model.ResourceTypeVM, model.ResourceTypeDisk, model.ResourceTypeBucket:
	default:
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidResourceType, c)))
		return
	}

	payType := model.PayType(c.DefaultQuery("pay_type", string(model.PayTypePostpaid)))

	spec := pricing.ResourceSpec{Kind: resourceType}

	var err error
	if spec.Vcpus, err = queryInt(c, "cpu"); err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidParams, c)))
		return
	}
	if spec.RamGiB, err = queryInt(c, "ram"); err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidParams, c)))
		return
	}
	if spec.SystemDiskGiB, err = queryInt(c, "system_disk_size"); err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidParams, c)))
		return
	}
	if spec.DataDiskGiB, err = queryInt(c, "data_disk_size"); err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidParams, c)))
		return
	}
	if spec.PeriodMonths, err = queryInt(c, "period"); err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidPeriod, c)))
		return
	}
	if externalIP := c.Query("external_ip"); externalIP != "" {
		spec.PublicIP, err = strconv.ParseBool(externalIP)
		if err != nil {
			c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidParams, c)))
			return
		}
	}

	quote, err := pricing.NewPriceManager().QuotePrice(c.Request.Context(), spec, payType)
	if err != nil {
		log.Errorf("quote price: %v", err)
		c.JSON(http.StatusOK, respError(err))
		return
	}

	c.JSON(http.StatusOK, respJSON(JsonObject{
		"price": quote,
	}))
}

func queryInt(c *gin.Context, key string) (int, error) {
	val := c.Query(key)
	if val == "" {
		return 0, nil
	}
	return strconv.Atoi(val)
}
