// Package tuition manages training subscriptions: a student (billed directly
// or through a subscriptor) enrolled in one or more training sessions, moved
// through a quotation and confirmation workflow that bills sales and posts
// invoices in the host ERP, then reproduced on a schedule.
//
// Tuition is designed as a library. The host supplies its sales, invoicing,
// party and catalog services through Host; the engine owns subscriptions,
// their recurrence history, code sequences and, unless the host brings its
// own, the job scheduler.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tuition"
//	    "github.com/xraph/tuition/store/postgres"
//	)
//
//	store, err := postgres.New(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := tuition.New(store, tuition.Host{
//	    Sales:    erp.Sales,
//	    Invoices: erp.Invoices,
//	    Parties:  erp.Parties,
//	    Catalog:  erp.Catalog,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Shutdown(ctx)
//
// # Workflow
//
// A subscription moves through these states:
//
//	draft -> quotation -> confirmed -> processing -> done
//	                                        \-> stop -> processing
//	draft, quotation -> cancel -> draft
//
// Quotation assigns the subscription code from the "training.subscription"
// sequence. Confirmation creates one sale per default charge product plus
// the main sale for the lines, and drives each through quote, confirm and
// process before posting the generated invoice with the subscription code
// as its reference. Processing schedules the model_copy job that duplicates
// the subscription's source document once per interval. Every call is
// recorded in the subscription's history; the last one moves the
// subscription to done.
//
// # TypeID
//
// All entities use TypeID identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	hist_01h455vb4pex5vsknk084sn02q  // History entry ID
package tuition
