// Package records generates and serializes the synthetic datasets that are
// loaded into Snowflake.
package records

import "time"

// Person is a row of the fixed CSV sample dataset.
type Person struct {
	ID   int
	Name string
	Age  int
}

// SamplePeople returns the fixed sample dataset.
func SamplePeople() []Person {
	return []Person{
		{ID: 1, Name: "Alice", Age: 25},
		{ID: 2, Name: "Bob", Age: 30},
		{ID: 3, Name: "Mark", Age: 35},
	}
}

// Address is the nested address object of a customer.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Customer is one record of the customer dataset.
type Customer struct {
	CustomerID string  `json:"customerId"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address    Address `json:"address"`
}

// Item is a single order line.
type Item struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Order is the message published to Kafka and loaded into the orders table.
type Order struct {
	OrderID     string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	OrderDate   time.Time `json:"orderDate"`
	TotalAmount float64   `json:"totalAmount"`
	Items       []Item    `json:"items"`
}
