package tool

import "github.com/cloudwego/eino/schema"

// Canonical tool names exposed to the model.
const (
	ToolGetUserOrders         = "get_user_orders"
	ToolGetOrderDetails       = "get_order_details"
	ToolSearchOrdersByProduct = "search_orders_by_product"
	ToolValidateOrderIDs      = "validate_order_ids"
	ToolGetRefundPolicy       = "get_refund_policy"
	ToolGetGeneralPolicyTerms = "get_general_policy_terms"
	ToolGetOrderFacts         = "get_order_facts"
	ToolCalculateRefund       = "calculate_refund"
	ToolSubmitRefundRequest   = "submit_refund_request"
	ToolGetUserRefunds        = "get_user_refunds"
	ToolRaiseSupportTicket    = "raise_support_ticket"
	ToolCheckProductStock     = "check_product_stock"
)

// Infos describes every tool the registry can dispatch. The descriptions are
// written for the model, not for humans; keep them short and imperative.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name:        ToolGetUserOrders,
			Desc:        "List all orders of the current user with items, prices, and statuses.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolGetOrderDetails,
			Desc: "Get full details of one order owned by the current user.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"order_id": {Type: schema.Integer, Desc: "Order ID", Required: true},
			}),
		},
		{
			Name: ToolSearchOrdersByProduct,
			Desc: "Find the user's orders that contain a product matching the given name.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_name": {Type: schema.String, Desc: "Full or partial product name", Required: true},
			}),
		},
		{
			Name: ToolValidateOrderIDs,
			Desc: "Check which of the given order IDs exist and belong to the current user.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"order_ids": {Type: schema.String, Desc: "Order IDs separated by commas or whitespace", Required: true},
			}),
		},
		{
			Name: ToolGetRefundPolicy,
			Desc: "Get the refund policy section for one category, e.g. DAMAGED_ITEM.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"category": {Type: schema.String, Desc: "Policy category code", Required: true},
			}),
		},
		{
			Name:        ToolGetGeneralPolicyTerms,
			Desc:        "Get the general refund policy terms that apply to every category.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolGetOrderFacts,
			Desc: "Get objective eligibility facts for an order item: dates, status, and the maximum refundable amount. Call this before promising a refund.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"order_id":      {Type: schema.Integer, Desc: "Order ID", Required: true},
				"order_item_id": {Type: schema.Integer, Desc: "Order item ID", Required: true},
			}),
		},
		{
			Name: ToolCalculateRefund,
			Desc: "Calculate the exact refund amount for an order item, optionally for a partial quantity.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"order_item_id": {Type: schema.Integer, Desc: "Order item ID", Required: true},
				"quantity":      {Type: schema.Integer, Desc: "Units to refund; omit for the full quantity"},
			}),
		},
		{
			Name: ToolSubmitRefundRequest,
			Desc: "Submit an eligible refund request for an order item. The amount is computed server side.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"order_item_id": {Type: schema.Integer, Desc: "Order item ID", Required: true},
				"refund_type":   {Type: schema.String, Desc: "Refund category code", Required: true},
				"reason":        {Type: schema.String, Desc: "Short reason given by the user", Required: true},
				"quantity":      {Type: schema.Integer, Desc: "Units to refund; omit for the full quantity"},
				"evidence":      {Type: schema.String, Desc: "Evidence reference such as a photo URL"},
			}),
		},
		{
			Name:        ToolGetUserRefunds,
			Desc:        "List the current user's refund requests with statuses and amounts.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolRaiseSupportTicket,
			Desc: "Escalate the conversation to a human agent by opening a support ticket.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"subject":     {Type: schema.String, Desc: "One-line ticket subject", Required: true},
				"description": {Type: schema.String, Desc: "Optional context for the human agent"},
				"order_id":    {Type: schema.Integer, Desc: "Related order ID, if any"},
			}),
		},
		{
			Name: ToolCheckProductStock,
			Desc: "Check whether a product is in stock, for replacement offers.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.Integer, Desc: "Product ID", Required: true},
			}),
		},
	}
}
