package planner

import (
	"errors"

	"go.uber.org/zap"

	"cycle-trader/internal/exchange"
	"cycle-trader/internal/forecast"
	"cycle-trader/internal/position"
)

// CostBasis 计算当前持仓的平均成本。
type CostBasis interface {
	AverageCost(history []exchange.TradeRecord, balance float64) (float64, error)
}

// CostBasisFunc 将函数适配为 CostBasis。
type CostBasisFunc func(history []exchange.TradeRecord, balance float64) (float64, error)

// AverageCost 实现 CostBasis。
func (f CostBasisFunc) AverageCost(history []exchange.TradeRecord, balance float64) (float64, error) {
	return f(history, balance)
}

// Settings 为生成候选操作所需的周期参数。
type Settings struct {
	Pairs     []string
	Steps     int
	Threshold float64
	BuyField  string
	SellField string
}

// Builder 根据预测与账户快照逐步生成候选操作。
type Builder struct {
	settings   Settings
	prediction forecast.Prediction
	snapshot   exchange.Snapshot
	costBasis  CostBasis
	logger     *zap.Logger
}

// NewBuilder 创建计划生成器，costBasis 为空时使用倒序成本法。
func NewBuilder(settings Settings, prediction forecast.Prediction, snapshot exchange.Snapshot, costBasis CostBasis, logger *zap.Logger) *Builder {
	if costBasis == nil {
		costBasis = CostBasisFunc(position.AverageCost)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		settings:   settings,
		prediction: prediction,
		snapshot:   snapshot,
		costBasis:  costBasis,
		logger:     logger,
	}
}

type pairContext struct {
	pair      exchange.Pair
	buyPrice  float64
	sellPrice float64
	hasSell   bool
	boughtFor float64
	canSell   bool
}

// Candidates 返回每个步长的候选计划，下标 0 对应第 1 步。
func (b *Builder) Candidates() []Plan {
	steps := b.settings.Steps
	if steps < 1 {
		steps = 1
	}
	plans := make([]Plan, steps)

	contexts := b.prepare()

	for s := 1; s <= steps; s++ {
		plan := make(Plan, 0, len(contexts))
		for _, id := range b.settings.Pairs {
			pc, ok := contexts[id]
			if !ok {
				continue
			}
			predicted, ok := b.prediction[id][s]
			if !ok {
				continue
			}
			plan = append(plan, b.evaluate(id, s, predicted, pc)...)
		}
		plans[s-1] = plan
	}

	return plans
}

// prepare 预先读取行情并计算一次成本，避免在步长循环中重复计算。
func (b *Builder) prepare() map[string]pairContext {
	contexts := make(map[string]pairContext, len(b.settings.Pairs))

	for _, id := range b.settings.Pairs {
		if _, ok := b.prediction[id]; !ok {
			b.logger.Info("交易对无预测结果，跳过", zap.String("pair", id))
			continue
		}
		pair, err := exchange.ParsePair(id)
		if err != nil {
			b.logger.Warn("交易对格式非法，跳过", zap.String("pair", id), zap.Error(err))
			continue
		}
		ticker, ok := b.snapshot.Ticker[id]
		if !ok {
			b.logger.Warn("交易对缺少行情，跳过", zap.String("pair", id))
			continue
		}
		buyPrice, ok := ticker.Price(b.settings.BuyField)
		if !ok {
			b.logger.Warn("行情缺少买入价格字段，跳过",
				zap.String("pair", id),
				zap.String("field", b.settings.BuyField),
			)
			continue
		}

		pc := pairContext{pair: pair, buyPrice: buyPrice}
		pc.sellPrice, pc.hasSell = ticker.Price(b.settings.SellField)
		if !pc.hasSell {
			b.logger.Warn("行情缺少卖出价格字段，仅评估买入",
				zap.String("pair", id),
				zap.String("field", b.settings.SellField),
			)
		}

		balance := b.snapshot.Balance(pair.Secondary)
		history := b.snapshot.TradeHistory[id]
		if balance > 0 && len(history) > 0 {
			boughtFor, err := b.costBasis.AverageCost(history, balance)
			switch {
			case err == nil:
				pc.boughtFor = boughtFor
				pc.canSell = true
			default:
				var histErr *position.InsufficientHistoryError
				if errors.As(err, &histErr) {
					histErr.Pair = id
				}
				b.logger.Warn("无法计算持仓成本，本周期不评估卖出",
					zap.String("pair", id),
					zap.Float64("balance", balance),
					zap.Error(err),
				)
			}
		}

		contexts[id] = pc
	}

	return contexts
}

func (b *Builder) evaluate(id string, step int, predicted float64, pc pairContext) []Operation {
	fees := b.snapshot.Fees
	threshold := b.settings.Threshold

	buyProfit := feeAdjusted(predicted-pc.buyPrice, fees.TakerFee)
	if buyProfit > 0 && buyProfit > threshold {
		return []Operation{{
			Type:      OpBuy,
			Pair:      id,
			Profit:    buyProfit,
			Step:      step,
			Price:     pc.buyPrice,
			OrderType: exchange.OrderTypeFillOrKill,
		}}
	}

	if !pc.canSell {
		return nil
	}

	var ops []Operation
	predictedSellProfit := feeAdjusted(predicted-pc.boughtFor, fees.MakerFee)
	if predictedSellProfit > 0 && predictedSellProfit > threshold {
		ops = append(ops, Operation{
			Type:      OpSell,
			Pair:      id,
			Profit:    predictedSellProfit,
			Step:      step,
			Price:     predicted,
			OrderType: exchange.OrderTypeStanding,
		})
	}

	if step == 1 && pc.hasSell {
		currentSellProfit := feeAdjusted(pc.sellPrice-pc.boughtFor, fees.MakerFee)
		if currentSellProfit > 0 && currentSellProfit > threshold {
			ops = append(ops, Operation{
				Type:      OpSell,
				Pair:      id,
				Profit:    currentSellProfit,
				Step:      step,
				Price:     pc.sellPrice,
				OrderType: exchange.OrderTypeFillOrKill,
			})
		}
	}

	return ops
}

// feeAdjusted 扣除百分比手续费。
func feeAdjusted(delta, feePercent float64) float64 {
	return delta - delta*feePercent/100
}
