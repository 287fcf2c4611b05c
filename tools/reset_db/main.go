package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"

	"marketplace-im/config"

	"github.com/go-sql-driver/mysql"
)

// 按依赖顺序清理：消息、会话、连接、拉黑、通知
var coreTables = []string{"message", "conversation", "connection", "blocked_user", "notification"}

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	withUsers := flag.Bool("with-users", false, "also clear the user and service tables")
	flag.Parse()

	cfg := config.LoadConfig().Database
	if cfg.Driver != "" && cfg.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, configured driver is %q", cfg.Driver)
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	if cfg.Charset != "" {
		dsnCfg.Params = map[string]string{"charset": cfg.Charset}
	}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s\n", cfg.Database)

	tables := coreTables
	if *withUsers {
		tables = append(tables, "service", "user")
	}

	if !*yes {
		fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
		fmt.Print("Type 'YES' to confirm: ")
		var confirm string
		_, _ = fmt.Scanln(&confirm)
		if confirm != "YES" {
			fmt.Println("Operation cancelled")
			return
		}
	}

	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1") }()

	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM `%s`", table)); err != nil {
			fmt.Printf("Failed: %v\n", err)
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", table)); err != nil {
			fmt.Printf("cleared, auto-increment reset failed: %v\n", err)
			continue
		}
		fmt.Println("Success")
	}

	fmt.Println("\nDatabase reset completed!")
}
