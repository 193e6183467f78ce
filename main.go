package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/skala-commerce/storefront/lib/mycache"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mypubsub"
	"github.com/skala-commerce/storefront/lib/myqueue"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/address"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/checkoutapi"
	"github.com/skala-commerce/storefront/services/checkoutmollie"
	"github.com/skala-commerce/storefront/services/checkoutrazorpay"
	"github.com/skala-commerce/storefront/services/checkoutstripe"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
	"github.com/skala-commerce/storefront/services/session"
	"github.com/skala-commerce/storefront/services/shipping"
	"github.com/skala-commerce/storefront/services/tracking"
	"github.com/skala-commerce/storefront/services/warmup"
	"github.com/skala-commerce/storefront/services/wishlist"
)

// Config is read from the environment, optionally seeded by a .env file
type Config struct {
	JWTSecret             string `envconfig:"JWT_SECRET" required:"true"`
	RazorpayKeyID         string `envconfig:"RAZORPAY_KEY_ID" required:"true"`
	RazorpayKeySecret     string `envconfig:"RAZORPAY_KEY_SECRET" required:"true"`
	RazorpayWebhookSecret string `envconfig:"RAZORPAY_WEBHOOK_SECRET" required:"true"`
	StripeAPIKey          string `envconfig:"STRIPE_API_KEY"`
	MollieAPIKey          string `envconfig:"MOLLIE_API_KEY"`
	CourierBaseURL        string `envconfig:"COURIER_BASE_URL" required:"true"`
	CourierAPIKey         string `envconfig:"COURIER_API_KEY" required:"true"`
}

func main() {
	c := context.Background()

	_ = godotenv.Load()

	cfg := Config{}
	err := envconfig.Process("storefront", &cfg)
	if err != nil {
		log.Fatalf("Error reading configuration: %s", err)
	}

	logger := mylog.New("storefront")
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	accountStore, accountStoreCleanup, err := mystore.New[session.Account](c)
	if err != nil {
		log.Fatalf("Error creating account store: %s", err)
	}
	defer accountStoreCleanup()

	cartStore, cartStoreCleanup, err := mystore.New[cart.Cart](c)
	if err != nil {
		log.Fatalf("Error creating cart store: %s", err)
	}
	defer cartStoreCleanup()

	addressStore, addressStoreCleanup, err := mystore.New[address.Address](c)
	if err != nil {
		log.Fatalf("Error creating address store: %s", err)
	}
	defer addressStoreCleanup()

	wishlistStore, wishlistStoreCleanup, err := mystore.New[wishlist.Wishlist](c)
	if err != nil {
		log.Fatalf("Error creating wishlist store: %s", err)
	}
	defer wishlistStoreCleanup()

	checkoutStore, checkoutStoreCleanup, err := mystore.New[checkoutapi.CheckoutContext](c)
	if err != nil {
		log.Fatalf("Error creating checkout store: %s", err)
	}
	defer checkoutStoreCleanup()

	orderStore, orderStoreCleanup, err := mystore.New[order.FinalOrder](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	cache, cacheCleanup, err := mycache.New(c)
	if err != nil {
		log.Fatalf("Error creating cache: %s", err)
	}
	defer cacheCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()

	router := mux.NewRouter()
	publisher.RegisterEndpoints(c, router)

	tokenizer := session.NewTokenizer(cfg.JWTSecret)
	authenticate := session.BearerAuth(tokenizer, logger)
	adminOnly := session.AdminOnly(logger)

	sessionService := session.NewWebService(accountStore, tokenizer, nower, uuider)
	err = sessionService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering session endpoints: %s", err)
	}

	cartService := cart.NewWebService(cartStore, nower, uuider, pubsub, publisher, authenticate)
	err = cartService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering cart endpoints: %s", err)
	}

	addressService := address.NewWebService(addressStore, nower, uuider, authenticate)
	err = addressService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering address endpoints: %s", err)
	}

	wishlistService := wishlist.NewWebService(wishlistStore, cartStore, nower, uuider, authenticate)
	err = wishlistService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering wishlist endpoints: %s", err)
	}

	courierGateway := courier.NewGateway(cfg.CourierBaseURL, cfg.CourierAPIKey)

	shippingService := shipping.NewService(orderStore, courierGateway, queue, nower, mylog.New("shipping"))
	shippingWebService := shipping.NewWebService(shippingService)
	err = shippingWebService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering shipping endpoints: %s", err)
	}

	orderService := order.NewWebService(orderStore, publisher, nower, authenticate, adminOnly)
	err = orderService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering order endpoints: %s", err)
	}

	reconciler := tracking.NewReconciler(courierGateway, cache, mylog.New("tracking"))
	trackingService := tracking.NewWebService(orderStore, courierGateway, cache, reconciler, authenticate)
	err = trackingService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering tracking endpoints: %s", err)
	}

	razorpayService := checkoutrazorpay.NewWebService(
		checkoutrazorpay.Config{
			KeyID:         cfg.RazorpayKeyID,
			KeySecret:     cfg.RazorpayKeySecret,
			WebhookSecret: cfg.RazorpayWebhookSecret,
		},
		checkoutrazorpay.NewPayer(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret),
		checkoutStore, cartStore, addressStore, orderStore, accountStore,
		shippingService, publisher, nower, uuider, authenticate)
	err = razorpayService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering razorpay checkout endpoints: %s", err)
	}

	if cfg.StripeAPIKey != "" {
		stripeService := checkoutstripe.NewWebService(cfg.StripeAPIKey, checkoutstripe.NewPayer(),
			checkoutStore, cartStore, addressStore, orderStore, shippingService, publisher, nower, uuider)
		err = stripeService.RegisterEndpoints(c, router)
		if err != nil {
			log.Fatalf("Error registering stripe checkout endpoints: %s", err)
		}
	}

	if cfg.MollieAPIKey != "" {
		molliePayer, err := checkoutmollie.NewPayer()
		if err != nil {
			log.Fatalf("Error creating mollie payer: %s", err)
		}
		mollieService := checkoutmollie.NewWebService(cfg.MollieAPIKey, molliePayer,
			checkoutStore, cartStore, addressStore, orderStore, shippingService, publisher, nower, uuider)
		err = mollieService.RegisterEndpoints(c, router)
		if err != nil {
			log.Fatalf("Error registering mollie checkout endpoints: %s", err)
		}
	}

	warmupService := warmup.NewService(publisher)
	warmupService.RegisterEndpoints(c, router)

	startWebServerBlocking(router)
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
