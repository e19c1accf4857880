// Package helper 提供战略配置(SAA)/战术配置(TAA)/基金选择(FA)三个策略助手.
// 助手只依赖当日输入与各自配置, 不感知引擎
package helper

import (
	"fmt"
	"time"

	"github.com/opsxjacky/fund-backtest/pkg/types"
)

// SAAHelper 战略资产配置: 持有长期目标权重, 按日原样返回.
// 单独成类是为了将来挂接时变的SAA策略而不改动调用方
type SAAHelper struct {
	saa types.AssetWeight
}

// NewSAAHelper 创建SAA助手, 权重在此校验
func NewSAAHelper(saa types.AssetWeight) (*SAAHelper, error) {
	if err := saa.Validate(); err != nil {
		return nil, fmt.Errorf("saa setup: %w", err)
	}
	return &SAAHelper{saa: saa.Normalize()}, nil
}

// OnPrice 返回当日目标权重
func (h *SAAHelper) OnPrice(day time.Time, prices types.AssetPrice) types.AssetWeight {
	return h.saa.Copy()
}
