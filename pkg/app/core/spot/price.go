package spot

import "github.com/uhyunpark/hyperspot/pkg/app/core/market"

// recordTrade feeds a fill into the pair's price state. Fills with a zero
// price or amount are ignored.
func (tx *txn) recordTrade(pair market.Pair, price, amount uint64) error {
	if price == 0 || amount == 0 {
		return nil
	}
	st, err := tx.Prices.Get(pair)
	if err != nil {
		return err
	}
	st.Last = price

	if st.Average == 0 {
		st.Average = price
	} else {
		cfg, err := tx.Config.Get()
		if err != nil {
			return err
		}
		precision, err := tx.e.assets.Precision(pair.Second)
		if err != nil {
			return err
		}
		st.Average, err = rollingAverage(st.Average, price, amount, precision, cfg.AveragePriceWindow)
		if err != nil {
			return err
		}
	}
	if err := tx.Prices.Put(pair, st); err != nil {
		return err
	}

	if pair.First == tx.e.assets.Native() {
		return tx.Prices.SetNativePrice(pair.Second, st.Average)
	}
	return nil
}
