// Package templates resolves the on-chain templates api calls refer to and
// merges them into the calls.
package templates

import (
	"context"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/batch"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
	"github.com/AvaProtocol/ap-oracle/pkg/paramcodec"
	"github.com/AvaProtocol/ap-oracle/pkg/retry"
)

type Resolver struct {
	oracle      *chainio.Oracle
	retry       retry.Options
	concurrency int
	logger      logger.Logger
}

func NewResolver(oracle *chainio.Oracle, opts retry.Options, concurrency int, l logger.Logger) *Resolver {
	return &Resolver{
		oracle:      oracle,
		retry:       opts,
		concurrency: concurrency,
		logger:      logger.EnsureLogger(l),
	}
}

// Fetch loads the distinct templates of ids. A template missing from the
// result is unknown for this cycle: either its batch failed every attempt or
// the contract has no such template.
func (r *Resolver) Fetch(ctx context.Context, ids []common.Hash) map[common.Hash]model.Template {
	ids = lo.Uniq(ids)

	results := batch.Run(ctx, ids, batch.MaxSize, r.concurrency, func(ctx context.Context, chunk []common.Hash) ([]model.Template, error) {
		return retry.Do(ctx, r.retry, func(ctx context.Context) ([]model.Template, error) {
			return r.oracle.GetTemplates(ctx, chunk)
		})
	})

	templates := map[common.Hash]model.Template{}
	for _, result := range results {
		if result.Err != nil {
			r.logger.Error("failed to fetch templates", "count", len(result.Items), "err", result.Err)
			continue
		}
		for _, t := range result.Value {
			if t.EndpointID == (common.Hash{}) {
				r.logger.Warn("template not found on chain", "template_id", t.ID.Hex())
				continue
			}
			templates[t.ID] = t
		}
	}
	return templates
}

// Resolve decodes request parameters, then fetches and merges the templates
// of every pending call. Fields set on the request win over the template.
func (r *Resolver) Resolve(ctx context.Context, calls []model.ApiCall) []model.ApiCall {
	out := DecodeParameters(calls, r.logger)

	ids := []common.Hash{}
	for _, call := range out {
		if call.IsPending() && call.TemplateID != nil {
			ids = append(ids, *call.TemplateID)
		}
	}
	if len(ids) == 0 {
		return out
	}

	return Merge(out, r.Fetch(ctx, ids), r.logger)
}

// DecodeParameters decodes the parameters every pending call carries.
func DecodeParameters(calls []model.ApiCall, l logger.Logger) []model.ApiCall {
	l = logger.EnsureLogger(l)
	out := make([]model.ApiCall, len(calls))
	for i, call := range calls {
		if call.IsPending() {
			params, err := paramcodec.Decode(call.EncodedParameters)
			if err != nil {
				l.Warn("invalid request parameters", "request_id", call.ID.Hex(), "err", err)
				call.Fail(model.ErrorInvalidRequestParameters)
			} else {
				call.Parameters = params
			}
		}
		out[i] = call
	}
	return out
}

// Merge applies templates to the pending calls that reference one.
func Merge(calls []model.ApiCall, templates map[common.Hash]model.Template, l logger.Logger) []model.ApiCall {
	l = logger.EnsureLogger(l)
	out := make([]model.ApiCall, len(calls))
	for i, call := range calls {
		out[i] = mergeOne(call, templates, l)
	}
	return out
}

func mergeOne(call model.ApiCall, templates map[common.Hash]model.Template, l logger.Logger) model.ApiCall {
	if !call.IsPending() || call.TemplateID == nil {
		return call
	}

	template, ok := templates[*call.TemplateID]
	if !ok {
		l.Info("template not available, retrying next cycle", "request_id", call.ID.Hex(), "template_id", call.TemplateID.Hex())
		call.Block(model.ErrorTemplateNotFound)
		return call
	}

	templateParams, err := paramcodec.Decode(template.EncodedParameters)
	if err != nil {
		l.Warn("invalid template parameters", "request_id", call.ID.Hex(), "template_id", template.ID.Hex(), "err", err)
		call.Fail(model.ErrorInvalidTemplateParameters)
		return call
	}

	if call.EndpointID == nil {
		endpointID := template.EndpointID
		call.EndpointID = &endpointID
	}
	if call.FulfillAddress == nil {
		address := template.FulfillAddress
		call.FulfillAddress = &address
	}
	if call.FulfillFunctionID == nil {
		selector := template.FulfillFunctionID
		call.FulfillFunctionID = &selector
	}
	if call.ErrorAddress == nil {
		address := template.ErrorAddress
		call.ErrorAddress = &address
	}
	if call.ErrorFunctionID == nil {
		selector := template.ErrorFunctionID
		call.ErrorFunctionID = &selector
	}

	merged := make(map[string]string, len(templateParams)+len(call.Parameters))
	maps.Copy(merged, templateParams)
	maps.Copy(merged, call.Parameters)
	call.Parameters = merged

	return call
}
