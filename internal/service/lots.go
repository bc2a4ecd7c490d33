package service

import "github.com/shopspring/decimal"

// Lot is a block of shares bought at one price.
type Lot struct {
	Shares decimal.Decimal
	Price  decimal.Decimal
}

// LotQueue is a FIFO of open lots. The zero value is ready to use.
type LotQueue struct {
	lots []Lot
	head int
}

func (q *LotQueue) Push(l Lot) {
	if !l.Shares.IsPositive() {
		return
	}
	q.lots = append(q.lots, l)
}

func (q *LotQueue) Len() int {
	return len(q.lots) - q.head
}

// Consume removes up to shares from the front of the queue, oldest lot first.
// It returns how many shares were matched and their cost basis.
func (q *LotQueue) Consume(shares decimal.Decimal) (matched, cost decimal.Decimal) {
	for shares.IsPositive() && q.head < len(q.lots) {
		front := &q.lots[q.head]
		take := decimal.Min(front.Shares, shares)
		matched = matched.Add(take)
		cost = cost.Add(take.Mul(front.Price))
		shares = shares.Sub(take)
		front.Shares = front.Shares.Sub(take)
		if !front.Shares.IsPositive() {
			q.head++
		}
	}
	q.compact()
	return matched, cost
}

// Open sums the shares and cost basis still in the queue.
func (q *LotQueue) Open() (shares, cost decimal.Decimal) {
	for _, l := range q.lots[q.head:] {
		shares = shares.Add(l.Shares)
		cost = cost.Add(l.Shares.Mul(l.Price))
	}
	return shares, cost
}

func (q *LotQueue) compact() {
	if q.head == 0 || q.head < len(q.lots)/2 {
		return
	}
	n := copy(q.lots, q.lots[q.head:])
	q.lots = q.lots[:n]
	q.head = 0
}
