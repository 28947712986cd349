package pipeline

import (
	"flakeload/internal/config"
	"flakeload/internal/records"
	"flakeload/internal/snowflake"
	"flakeload/pkg/errors"
)

const (
	customerFile = "customer_data.json"
	peopleFile   = "data.csv"
)

// CustomerTable is the target of the customer dataset. Columns are read
// from the staged NDJSON by field name.
func CustomerTable(name string) snowflake.TableSpec {
	return snowflake.TableSpec{
		Name:       name,
		PrimaryKey: "customerId",
		Columns: []snowflake.Column{
			{Name: "customerId", Type: "STRING"},
			{Name: "firstName", Type: "STRING"},
			{Name: "lastName", Type: "STRING"},
			{Name: "email", Type: "STRING"},
			{Name: "phone", Type: "STRING"},
			{Name: "address", Type: "OBJECT"},
		},
	}
}

// PeopleTable is the target of the fixed CSV sample.
func PeopleTable(name string) snowflake.TableSpec {
	return snowflake.TableSpec{
		Name:       name,
		PrimaryKey: "id",
		Columns: []snowflake.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "name", Type: "STRING", NotNull: true},
			{Name: "age", Type: "INTEGER"},
		},
	}
}

// Topology lists the targets init_job provisions: the bulk binding and,
// when configured, the streaming binding.
func Topology(s *config.Settings) []snowflake.Target {
	targets := []snowflake.Target{{
		Role:       s.Bulk.Role,
		Database:   s.Database,
		Schema:     s.Schema,
		Warehouses: []string{s.Bulk.Warehouse},
	}}
	if s.Streaming.Configured() {
		targets = append(targets, snowflake.Target{
			Role:       s.Streaming.Role,
			Database:   s.Database,
			Schema:     s.Schema,
			Warehouses: []string{s.Streaming.Warehouse},
		})
	}
	return targets
}

// loadRequest serializes the configured dataset.
func loadRequest(s *config.Settings, gen *records.Generator) (snowflake.LoadRequest, error) {
	bulk := snowflake.SessionContext{
		Warehouse: s.Bulk.Warehouse,
		Database:  s.Database,
		Schema:    s.Schema,
	}

	switch s.Dataset {
	case config.DatasetPeople:
		people := records.SamplePeople()
		data, err := records.PeopleCSV(people)
		if err != nil {
			return snowflake.LoadRequest{}, err
		}
		return snowflake.LoadRequest{
			Table:    PeopleTable(s.PeopleTable),
			Format:   snowflake.FileFormat{Name: s.PeopleFileFormat, Type: snowflake.FormatCSV},
			FileName: peopleFile,
			Data:     data,
			Rows:     len(people),
			Context:  bulk,
		}, nil

	case config.DatasetCustomers, "":
		customers, err := gen.Customers(s.NumberOfCustomers)
		if err != nil {
			return snowflake.LoadRequest{}, err
		}
		data, err := records.EncodeNDJSON(customers)
		if err != nil {
			return snowflake.LoadRequest{}, err
		}
		return snowflake.LoadRequest{
			Table:    CustomerTable(s.CustomerTable),
			Format:   snowflake.FileFormat{Name: s.CustomerFileFormat, Type: snowflake.FormatJSON},
			FileName: customerFile,
			Data:     data,
			Rows:     len(customers),
			Context:  bulk,
		}, nil

	default:
		return snowflake.LoadRequest{}, errors.ConfigInvalid("LOAD_DATASET", string(s.Dataset)+" is not a known dataset")
	}
}
