package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed facts.sql
var factsSQL string

// Function lists for verification
var FactsFunctions = []string{
	"init_facts",
	"insert_fact",
	"select_fact",
	"count_facts",
	"truncate_facts",
	"select_facts_by_similarity",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadFactsSql loads fact-related SQL functions
func LoadFactsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, FactsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing facts functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(factsSQL)
	if err != nil {
		return fmt.Errorf("error executing facts SQL: %w", err)
	}

	exist, err := checkFunctions(db, FactsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL facts functions loaded successfully")
	return nil
}

// LoadAllSql initializes the extensions and loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := Init(db); err != nil {
		return err
	}

	return LoadFactsSql(db, force)
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
