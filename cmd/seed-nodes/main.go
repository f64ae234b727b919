package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/db"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

type seedFile struct {
	Nodes []seedNode `yaml:"nodes"`
}

type seedNode struct {
	Name   string `yaml:"name"`
	IP     string `yaml:"ip"`
	Port   int    `yaml:"port"`
	Pubkey string `yaml:"pubkey"`
	Active *bool  `yaml:"active"`
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	nodesPath := flag.String("nodes", "nodes.yaml", "path to the node seed file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*nodesPath)
	if err != nil {
		log.Fatalf("❌ Failed to read %s: %v", *nodesPath, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("❌ Failed to parse %s: %v", *nodesPath, err)
	}
	if len(seed.Nodes) == 0 {
		log.Fatalf("❌ No nodes found in %s", *nodesPath)
	}

	gormDB, err := db.Connect(cfg.Database.DSN, db.APIPool(&cfg.Database))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("❌ %v", err)
	}

	repo := repository.NewOrchestratorRepository(gormDB)
	ctx := context.Background()

	for _, entry := range seed.Nodes {
		if entry.Name == "" || entry.IP == "" {
			log.Fatalf("❌ Node entries need both name and ip: %+v", entry)
		}
		port := entry.Port
		if port == 0 {
			port = cfg.Orchestrator.RPCPort
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}

		node := &models.OrchestratorNode{
			Name:      entry.Name,
			IPAddress: entry.IP,
			Pubkey:    entry.Pubkey,
			RPCPort:   port,
			IsActive:  active,
		}
		if err := repo.UpsertNode(ctx, node); err != nil {
			log.Fatalf("❌ Failed to seed node %s: %v", entry.Name, err)
		}
		fmt.Printf("✅ Seeded node %s (%s:%d)\n", entry.Name, entry.IP, port)
	}

	fmt.Printf("Done, %d nodes seeded\n", len(seed.Nodes))
}
