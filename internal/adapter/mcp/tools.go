package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guillermoBallester/cleansweep/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "cleansweep"

// Tool descriptions
const (
	descDescribeKeys = "Describe the keys a purge of a table would use: every index with its columns, " +
		"uniqueness and whether it can be traversed, the chosen primary key, and the traversal key " +
		"picked when no index is named. Call this before plan_purge to choose an index."

	descPlanPurge = "Render the statements a purge or copy run would issue, without changing any data: " +
		"the initial chunk SELECT, the SELECT for the following chunk, and the DELETE (or INSERT when " +
		"dest_table is set) built from the first row found. Use it to review a job before running it."

	descTableParam = "Name of the table to purge"
)

func RegisterTools(s *server.MCPServer, plan *service.PlanService) {
	s.AddTool(
		mcp.NewTool("describe_keys",
			mcp.WithDescription(descDescribeKeys),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description(descTableParam),
			),
		),
		describeKeysHandler(plan),
	)

	s.AddTool(
		mcp.NewTool("plan_purge",
			mcp.WithDescription(descPlanPurge),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description(descTableParam),
			),
			mcp.WithString("index",
				mcp.Description("Index to traverse (optional, picked automatically if omitted)"),
			),
			mcp.WithBoolean("reverse",
				mcp.Description("Traverse the index in descending order. Defaults to false."),
			),
			mcp.WithBoolean("first_only",
				mcp.Description("Page on the first index column only, with an inclusive bound. Defaults to false."),
			),
			mcp.WithBoolean("non_traversing",
				mcp.Description("Re-read the table head instead of paging. Defaults to false."),
			),
			mcp.WithString("dest_table",
				mcp.Description("Copy rows into this table instead of deleting them"),
			),
			mcp.WithString("filter",
				mcp.Description("Extra SQL condition applied to every chunk query"),
			),
			mcp.WithNumber("chunk_size",
				mcp.Description("Rows per chunk. Defaults to 500."),
			),
		),
		planPurgeHandler(plan),
	)
}

func describeKeysHandler(plan *service.PlanService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, ok := request.GetArguments()["table"].(string)
		if !ok || table == "" {
			return mcp.NewToolResultError("table is required"), nil
		}

		desc, err := plan.DescribeKeys(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to describe keys: %v", err)), nil
		}

		data, err := json.Marshal(desc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func planPurgeHandler(plan *service.PlanService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		table, _ := args["table"].(string)
		index, _ := args["index"].(string)
		reverse, _ := args["reverse"].(bool)
		firstOnly, _ := args["first_only"].(bool)
		nonTraversing, _ := args["non_traversing"].(bool)
		destTable, _ := args["dest_table"].(string)
		filter, _ := args["filter"].(string)
		// JSON numbers decode as float64.
		chunkSize, _ := args["chunk_size"].(float64)

		opts := service.Options{
			Table:         table,
			Index:         index,
			Reverse:       reverse,
			FirstOnly:     firstOnly,
			NonTraversing: nonTraversing,
			DestTable:     destTable,
			Filter:        filter,
			ChunkSize:     int(chunkSize),
		}
		if opts.Table == "" {
			return mcp.NewToolResultError("table is required"), nil
		}
		if opts.ChunkSize < 0 {
			return mcp.NewToolResultError("chunk_size must be positive"), nil
		}

		text, err := plan.Plan(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to plan purge: %v", err)), nil
		}

		return mcp.NewToolResultText(text), nil
	}
}
