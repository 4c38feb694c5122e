package fsm

// Static user-facing templates. Every prompt the engine can emit has an
// entry here; decorative variants come from the phrase generator.
const (
	textCategoryPrompt     = "What would you like to order? Pick a category:"
	textCategoryAction     = "View categories"
	textProductsAction     = "View products"
	textMoreTitle          = "More…"
	textMoreDescription    = "Show more products"
	textEmptyMenu          = "The menu is empty right now. Please try again in a moment."
	textEmptyCategory      = "No products in that category right now."
	textNoSearchResults    = "Nothing on the menu matches that. Pick a category instead:"
	textSizePrompt         = "Choose an option for %s:"
	textCartActionsBody    = "%s\n\nWhat next?"
	textDeliveryMethod     = "How would you like to receive your order?"
	textLocationRequest    = "Please share your delivery location so we can check coverage and cost."
	textPaymentPrompt      = "How would you like to pay?"
	textPaymentAction      = "Payment methods"
	textPhonePrompt        = "Please send us your phone number so we can confirm the order (e.g. +15551234567)."
	textPhoneInvalid       = "That doesn't look like a phone number. Please send digits only, e.g. +15551234567."
	textConfirmPrompt      = "Please review your order:\n\n%s\nConfirm to place it."
	textOrderPlaced        = "Order placed! Your order ID is %s."
	textOutOfZone          = "Sorry, we don't deliver to that location yet. You can pick up your order instead."
	textMinimumNotMet      = "Add %s %s more for delivery in %s, or switch to pickup."
	textFreeDelivery       = "Delivery: GRATUIT (order over %s %s, distance %s)"
	textDeliveryFee        = "Delivery fee: %s %s (distance %s, about %d min)"
	textTransientApology   = "We're having a temporary issue reaching the kitchen. Please try again in a moment."
	textOrderCreateFailed  = "We couldn't place the order: %s. Your cart is intact, please review it."
	textTrackingStatus     = "Order %s: %s"
	textTrackingEta        = "Order %s: %s (about %d min remaining)"
	textOrderNotFound      = "We couldn't find that order anymore."
	textNoOrders           = "You have no orders with us yet."
	textHistoryHeader      = "Your recent orders:"
	textPickupOnly         = "We're pickup and dine-in only right now."
	textCancelled          = "Order cancelled. Your cart is still here:\n\n%s"
	textEmptyCartCheckout  = "Your cart is empty. Add something from the menu first."
	textGenericReprompt    = "Sorry, I didn't get that."
	textPromptBrowsing     = "Type \"menu\" to see what we offer."
	textPromptCategory     = "Please pick a category from the list."
	textPromptProducts     = "Please pick a product from the list."
	textPromptCustomizing  = "Please choose one of the options above."
	textPromptCart         = "Use the buttons to continue shopping or check out."
	textPromptMethod       = "Please choose delivery, pickup or dine-in."
	textPromptLocation     = "Please share your location using the button above."
	textPromptPayment      = "Please pick a payment method from the list."
	textPromptConfirm      = "Please confirm or cancel your order."
	textPromptConfirmed    = "Your order is in! You can track it below."
	textPromptTracking     = "Tap refresh to check your order status."
)

// stagePrompt is the reprompt sent when an event does not fit the stage.
func stagePrompt(stage string) string {
	switch stage {
	case "browsing":
		return textPromptBrowsing
	case "selectingCategory":
		return textPromptCategory
	case "viewingProducts":
		return textPromptProducts
	case "customizing":
		return textPromptCustomizing
	case "reviewingCart":
		return textPromptCart
	case "checkoutStart", "awaitingDeliveryMethod":
		return textPromptMethod
	case "awaitingLocation":
		return textPromptLocation
	case "awaitingPayment":
		return textPromptPayment
	case "confirming":
		return textPromptConfirm
	case "confirmed":
		return textPromptConfirmed
	case "tracking":
		return textPromptTracking
	default:
		return textGenericReprompt
	}
}
