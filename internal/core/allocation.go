package core

// UpdateCommissionAllocation sets the doctor's commission on s, adding an
// allocation if the doctor has none. A percentage value must be within 0-100;
// a fixed amount within 0 and the subtotal. The line is left unchanged when
// the update is rejected, including when the new amount would push the sum of
// allocations over the subtotal.
func UpdateCommissionAllocation(s *ServiceLine, doctorID string, value int64, mode CommissionMode) error {
	var v CommissionValue
	switch mode {
	case ModePercentage:
		if value < 0 || value > 100 {
			return rejectDoctor(ErrPercentageOutOfRange, doctorID, "percentage %d", value)
		}
		v = Percentage(value)
	case ModeFixedAmount:
		if value < 0 {
			return rejectDoctor(ErrInvalidAmount, doctorID, "amount %d", value)
		}
		if value > s.Subtotal() {
			return rejectDoctor(ErrAmountExceedsServiceSubtotal, doctorID, "amount %d, subtotal %d", value, s.Subtotal())
		}
		v = FixedAmount(value)
	default:
		return rejectDoctor(ErrUnknownCommissionMode, doctorID, "%q", mode)
	}

	next := resolve(doctorID, v, s.Subtotal())
	i := s.Allocation(doctorID)
	var others int64
	for j, c := range s.Commissions {
		if j != i {
			others += c.Amount
		}
	}
	if others+next.Amount > s.Subtotal() {
		return rejectDoctor(ErrAmountExceedsServiceSubtotal, doctorID,
			"allocations would total %d, subtotal %d", others+next.Amount, s.Subtotal())
	}

	if i < 0 {
		s.Commissions = append(s.Commissions, next)
	} else {
		s.Commissions[i] = next
	}
	return nil
}

// SetCommissionMode switches the representation of an existing allocation
// without changing its amount; the percentage is re-derived from the amount.
func SetCommissionMode(s *ServiceLine, doctorID string, mode CommissionMode) error {
	if !mode.Valid() {
		return rejectDoctor(ErrUnknownCommissionMode, doctorID, "%q", mode)
	}
	i := s.Allocation(doctorID)
	if i < 0 {
		return rejectDoctor(ErrServiceNotFound, doctorID, "no allocation on service %s", s.ServiceID)
	}
	c := s.Commissions[i]
	if c.Value.Mode == mode {
		return nil
	}
	subtotal := s.Subtotal()
	pct := ratioPercent(c.Amount, subtotal)
	if mode == ModeFixedAmount {
		c.Value = FixedAmount(c.Amount)
	} else {
		c.Value = Percentage(pct)
	}
	c.Percentage = pct
	s.Commissions[i] = c
	return nil
}

// Reprice changes the unit price and quantity of s and recomputes every
// allocation. Percentage allocations are re-resolved against the new
// subtotal. Fixed allocations keep their per-unit amount:
// round(round(old/oldQty) * newQty). The change is rejected, and s left
// as it was, if the allocations would exceed the new subtotal.
func Reprice(s *ServiceLine, unitPrice int64, quantity int) error {
	if quantity < 1 {
		return reject(ErrInvalidQuantity, "quantity %d", quantity)
	}
	if unitPrice < 0 {
		return reject(ErrInvalidAmount, "unit price %d", unitPrice)
	}

	next := *s
	next.UnitPrice = unitPrice
	next.Quantity = quantity
	subtotal := next.Subtotal()
	next.Commissions = make([]CommissionAllocation, len(s.Commissions))
	for i, c := range s.Commissions {
		v := c.Value
		if v.Mode == ModeFixedAmount {
			perUnit := c.Amount
			if s.Quantity > 0 {
				perUnit = scale(c.Amount, 1, int64(s.Quantity))
			}
			v = FixedAmount(perUnit * int64(quantity))
		}
		next.Commissions[i] = resolve(c.DoctorID, v, subtotal)
	}
	if total := next.CommissionTotal(); total > subtotal {
		return reject(ErrAmountExceedsServiceSubtotal, "allocations would total %d, subtotal %d", total, subtotal)
	}
	*s = next
	return nil
}

func SetQuantity(s *ServiceLine, quantity int) error {
	return Reprice(s, s.UnitPrice, quantity)
}

func SetUnitPrice(s *ServiceLine, unitPrice int64) error {
	return Reprice(s, unitPrice, s.Quantity)
}

// AssignDoctors adds a zero-percent allocation for every doctor that does
// not have one yet, in the given order.
func AssignDoctors(s *ServiceLine, doctorIDs ...string) {
	for _, id := range doctorIDs {
		if s.Allocation(id) >= 0 {
			continue
		}
		s.Commissions = append(s.Commissions, resolve(id, Percentage(0), s.Subtotal()))
	}
}

// RemoveAllocation drops the doctor's allocation from s, if any.
func RemoveAllocation(s *ServiceLine, doctorID string) bool {
	i := s.Allocation(doctorID)
	if i < 0 {
		return false
	}
	s.Commissions = append(s.Commissions[:i:i], s.Commissions[i+1:]...)
	return true
}

func resolve(doctorID string, v CommissionValue, subtotal int64) CommissionAllocation {
	return CommissionAllocation{
		DoctorID:   doctorID,
		Value:      v,
		Amount:     v.AmountFor(subtotal),
		Percentage: v.PercentageFor(subtotal),
	}
}
