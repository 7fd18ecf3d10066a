package models

import "github.com/mmdatafocus/jewelry_pos/utils"

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (c Customer) GetId() int {
	return c.ID
}

func (c Customer) GetDefault(id int) Data {
	return Customer{
		ID:       id,
		Name:     "Walk-in customer",
		IsActive: utils.NewFalse(),
	}
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:       id,
		Name:     "Deleted product",
		IsActive: utils.NewFalse(),
	}
}
