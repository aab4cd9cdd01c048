// Package loot generates drops on creature death and distributes them:
// solo pickup, personal copies, need/greed roll sessions, master
// assignment and round-robin rotation. Every assignment is appended to
// the audit sink before the recipient's inventory is touched.
package loot

import (
	"math/rand"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/model"
)

// RollDrops rolls a loot table: every entry is an independent chance,
// quantity is uniform over [min, max]. Server rates scale both chance
// and quantity.
func RollDrops(table *data.LootTableDef, cfg config.LootConfig) []model.ItemStack {
	if table == nil || len(table.Entries) == 0 {
		return nil
	}

	chanceMultiplier := cfg.DropChanceMultiplier
	if chanceMultiplier <= 0 {
		chanceMultiplier = 1.0
	}
	amountMultiplier := cfg.DropAmountMultiplier
	if amountMultiplier <= 0 {
		amountMultiplier = 1.0
	}

	var results []model.ItemStack

	for _, entry := range table.Entries {
		chance := entry.Chance * chanceMultiplier
		if chance <= 0 {
			continue
		}
		if chance < 100 && rand.Float64()*100.0 >= chance {
			continue
		}

		minCount := entry.MinCount
		maxCount := entry.MaxCount
		if minCount <= 0 {
			minCount = 1
		}
		if maxCount < minCount {
			maxCount = minCount
		}

		count := minCount
		if maxCount > minCount {
			count = int32(rand.Intn(int(maxCount-minCount+1))) + minCount
		}

		count = int32(float64(count) * amountMultiplier)
		if count <= 0 {
			count = 1
		}

		results = append(results, model.ItemStack{ItemID: entry.ItemID, Count: count})
	}

	return results
}
