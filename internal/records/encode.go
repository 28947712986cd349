package records

import (
	"bytes"
	"encoding/csv"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"flakeload/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PeopleHeader is the header row of the people CSV file.
var PeopleHeader = []string{"id", "name", "age"}

// EncodeCSV writes header and rows as RFC 4180 CSV with LF line endings.
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to write CSV header")
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to write CSV rows")
	}
	return buf.Bytes(), nil
}

// PeopleCSV encodes people with PeopleHeader.
func PeopleCSV(people []Person) ([]byte, error) {
	rows := make([][]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, strconv.Itoa(p.Age)})
	}
	return EncodeCSV(PeopleHeader, rows)
}

// EncodeNDJSON writes one JSON object per line, each line newline terminated.
func EncodeNDJSON[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	stream := json.BorrowStream(&buf)
	defer json.ReturnStream(stream)

	for i := range records {
		stream.WriteVal(records[i])
		if stream.Error != nil {
			return nil, errors.Wrap(stream.Error, errors.ErrCodeSerialization, "failed to encode record").
				WithContext("index", i)
		}
		stream.WriteRaw("\n")
	}
	if err := stream.Flush(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to flush records")
	}
	return buf.Bytes(), nil
}

// MarshalOrder encodes a single order as a Kafka message value.
func MarshalOrder(o Order) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode order").
			WithContext("orderId", o.OrderID)
	}
	return b, nil
}

// UnmarshalOrder decodes a Kafka message value.
func UnmarshalOrder(b []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode order")
	}
	return o, nil
}
