package service

import (
	"math"
)

// ==================== 国际运费估算 ====================
// 三档承运渠道取最低价，全部以日元计

const (
	// 体积重上限（kg）与单边长上限（cm），任一超出即不可承运
	maxVolumetricWeightKg = 12
	maxDimensionCm        = 120

	// 小形包装物（small packet）的适用条件
	smallPacketDimSumCm    = 90
	smallPacketMaxDimCm    = 60
	smallPacketMaxWeightG  = 2000
	smallPacketMaxPriceYen = 20000
)

// ShippingService 运费估算服务
type ShippingService struct{}

// NewShippingService 创建运费估算服务
func NewShippingService() *ShippingService {
	return &ShippingService{}
}

// VolumetricWeight 体积重（kg）：实重与 体积/5000 取大
func (s *ShippingService) VolumetricWeight(lengthCm, widthCm, heightCm, weightGram float64) float64 {
	return math.Max(weightGram/1000, lengthCm*widthCm*heightCm/5000)
}

// Calc 估算国际运费（日元）
// 超出可承运范围返回 ErrPackageTooLarge（上限值本身仍可承运）
func (s *ShippingService) Calc(lengthCm, widthCm, heightCm, weightGram, orgPriceYen float64) (float64, error) {
	volWeight := s.VolumetricWeight(lengthCm, widthCm, heightCm, weightGram)
	maxDim := math.Max(lengthCm, math.Max(widthCm, heightCm))
	if volWeight > maxVolumetricWeightKg || maxDim > maxDimensionCm {
		return 0, ErrPackageTooLarge
	}

	weightKg := weightGram / 1000
	expressFee := math.Max(2700, (11300*volWeight+25400)/11.5)
	postalFee := math.Max(4000, 2800+math.Ceil(2.4*weightKg))

	fee := math.Min(expressFee, postalFee)

	if lengthCm+widthCm+heightCm <= smallPacketDimSumCm &&
		maxDim <= smallPacketMaxDimCm &&
		weightGram <= smallPacketMaxWeightG &&
		orgPriceYen <= smallPacketMaxPriceYen {
		smallPacketFee := math.Max(1290, 1080+math.Ceil(2.1*weightKg))
		fee = math.Min(fee, smallPacketFee)
	}

	return fee, nil
}
